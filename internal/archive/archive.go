package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const archiveDirPerm os.FileMode = 0o750

// Suffix is appended to the source path to name its archive.
const Suffix = ".zip"

// ZipPath writes src into a deflated zip at destZipPath. A directory is
// walked recursively and its files are stored under their slash-separated
// paths relative to src; a single file is stored under its base name.
// It returns the number of entries written.
func ZipPath(src, destZipPath string) (int, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	zipFile, zipWriter, err := prepareZip(destZipPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = zipFile.Close() }()

	entries := 0
	if info.IsDir() {
		entries, err = addTree(zipWriter, src)
	} else {
		err = addFile(zipWriter, src, filepath.Base(src))
		if err == nil {
			entries = 1
		}
	}
	if err != nil {
		_ = zipWriter.Close()
		return entries, err
	}

	if err := zipWriter.Close(); err != nil {
		return entries, fmt.Errorf("close zip writer: %w", err)
	}
	if err := zipFile.Close(); err != nil {
		return entries, fmt.Errorf("close zip file: %w", err)
	}
	return entries, nil
}

func addTree(zipWriter *zip.Writer, root string) (int, error) {
	entries := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path: %w", err)
		}
		if err := addFile(zipWriter, path, filepath.ToSlash(rel)); err != nil {
			return err
		}
		entries++
		return nil
	})
	if err != nil {
		return entries, fmt.Errorf("walk %s: %w", root, err)
	}
	return entries, nil
}

func addFile(zipWriter *zip.Writer, path, name string) error {
	in, err := os.Open(path) //nolint:gosec // path comes from walking the source tree
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header %s: %w", path, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	entryWriter, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zip entry create: %w", err)
	}
	if _, err := io.Copy(entryWriter, in); err != nil {
		return fmt.Errorf("copy into zip: %w", err)
	}
	return nil
}

// prepareZip creates destination file and a zip writer for it.
func prepareZip(destZipPath string) (io.WriteCloser, *zip.Writer, error) {
	if destZipPath == "" {
		return nil, nil, errors.New("empty destination path")
	}
	zipFile, err := openOSFile(destZipPath)
	if err != nil {
		return nil, nil, err
	}
	return zipFile, zip.NewWriter(zipFile), nil
}

// openOSFile creates or truncates the destination file along with ensuring parent dir exists
func openOSFile(destinationPath string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(destinationPath), archiveDirPerm); err != nil { //nolint:gosec // directory created by application under controlled path
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	outputFile, err := os.Create(destinationPath) //nolint:gosec // path is constructed by the application
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	return outputFile, nil
}
