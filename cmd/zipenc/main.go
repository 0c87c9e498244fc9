package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"davbackup/internal/zipenc"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args and performs one operation. It returns 0 on success, 1 when
// the operation failed and 2 on a usage error.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("zipenc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: zipenc [-m zip_enc|ozip|oenc] [-o output] [-k] src key")
		fmt.Fprintln(fs.Output(), "Zip and encrypt a file or directory with AES-256 using a passphrase or key file.")
		fs.PrintDefaults()
	}
	mode := fs.String("m", string(zipenc.ModeZipEncrypt), "operation mode: zip_enc (zip and encrypt), ozip (only zip) or oenc (only encrypt)")
	output := fs.String("o", "", "output file name (default: src.zip.enc)")
	keep := fs.Bool("k", false, "keep the zip file after encryption")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	// no timestamps: the backup runner stamps each relayed line itself
	logger := zerolog.New(plainWriter(stdout))
	errLog := zerolog.New(plainWriter(stderr))

	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}
	m, err := zipenc.ParseMode(*mode)
	if err != nil {
		errLog.Error().Err(err).Msg("invalid mode")
		return 2
	}

	if _, err := zipenc.Run(zipenc.Options{
		Source: fs.Arg(0),
		Key:    fs.Arg(1),
		Mode:   m,
		Output: *output,
		Keep:   *keep,
	}, logger); err != nil {
		errLog.Error().Err(err).Msg("zipenc failed")
		return 1
	}
	return 0
}

func plainWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:          out,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}
}
