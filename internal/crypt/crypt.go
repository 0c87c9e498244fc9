// Package crypt produces and reads files in the format written by
// `openssl enc -aes-256-cbc -salt -pbkdf2`: the magic "Salted__", an 8 byte
// salt, then AES-256-CBC ciphertext with PKCS#7 padding. Key and IV are
// derived together from the passphrase with PBKDF2-HMAC-SHA256.
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltMagic  = "Salted__"
	saltLen    = 8
	keyLen     = 32
	iterations = 10000
	chunkSize  = 32 * 1024
)

var (
	ErrBadHeader  = errors.New("input is not salted openssl data")
	ErrBadPadding = errors.New("bad padding: wrong passphrase or corrupt input")
)

func deriveKeyIV(passphrase string, salt []byte) (key, iv []byte) {
	material := pbkdf2.Key([]byte(passphrase), salt, iterations, keyLen+aes.BlockSize, sha256.New)
	return material[:keyLen], material[keyLen:]
}

// Encrypt streams src into dst, encrypted with a fresh random salt.
func Encrypt(dst io.Writer, src io.Reader, passphrase string) error {
	if passphrase == "" {
		return errors.New("empty passphrase")
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	if _, err := dst.Write(append([]byte(saltMagic), salt...)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	key, iv := deriveKeyIV(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("new cipher: %w", err)
	}
	mode := cipher.NewCBCEncrypter(block, iv)

	buf := make([]byte, 0, chunkSize+aes.BlockSize)
	chunk := make([]byte, chunkSize)
	for {
		n, readErr := src.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if full := len(buf) - len(buf)%aes.BlockSize; full > 0 {
			mode.CryptBlocks(buf[:full], buf[:full])
			if _, err := dst.Write(buf[:full]); err != nil {
				return fmt.Errorf("write ciphertext: %w", err)
			}
			buf = append(buf[:0], buf[full:]...)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read plaintext: %w", readErr)
		}
	}

	pad := aes.BlockSize - len(buf)
	buf = append(buf, bytes.Repeat([]byte{byte(pad)}, pad)...)
	mode.CryptBlocks(buf, buf)
	if _, err := dst.Write(buf); err != nil {
		return fmt.Errorf("write ciphertext: %w", err)
	}
	return nil
}

// Decrypt reverses Encrypt. The final block is held back until EOF so the
// padding can be checked and stripped.
func Decrypt(dst io.Writer, src io.Reader, passphrase string) error {
	header := make([]byte, len(saltMagic)+saltLen)
	if _, err := io.ReadFull(src, header); err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if string(header[:len(saltMagic)]) != saltMagic {
		return ErrBadHeader
	}

	key, iv := deriveKeyIV(passphrase, header[len(saltMagic):])
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("new cipher: %w", err)
	}
	mode := cipher.NewCBCDecrypter(block, iv)

	var pending []byte
	chunk := make([]byte, chunkSize)
	for {
		n, readErr := src.Read(chunk)
		pending = append(pending, chunk[:n]...)
		// keep at least one whole block back for unpadding
		if ready := len(pending) - len(pending)%aes.BlockSize - aes.BlockSize; ready > 0 {
			mode.CryptBlocks(pending[:ready], pending[:ready])
			if _, err := dst.Write(pending[:ready]); err != nil {
				return fmt.Errorf("write plaintext: %w", err)
			}
			pending = append(pending[:0], pending[ready:]...)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read ciphertext: %w", readErr)
		}
	}

	if len(pending) != aes.BlockSize {
		return fmt.Errorf("ciphertext is not a whole number of blocks")
	}
	mode.CryptBlocks(pending, pending)
	pad := int(pending[len(pending)-1])
	if pad == 0 || pad > aes.BlockSize {
		return ErrBadPadding
	}
	for _, b := range pending[len(pending)-pad:] {
		if int(b) != pad {
			return ErrBadPadding
		}
	}
	if _, err := dst.Write(pending[:len(pending)-pad]); err != nil {
		return fmt.Errorf("write plaintext: %w", err)
	}
	return nil
}
