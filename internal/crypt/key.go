package crypt

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrEmptyKey = errors.New("key file could not be read or is empty")

// ReadKey resolves a passphrase argument. Surrounding quotes are stripped;
// if the result names an existing file its trimmed contents are the key,
// otherwise the argument itself is the passphrase.
func ReadKey(arg string) (string, error) {
	key := arg
	if len(key) >= 2 && (key[0] == '"' && key[len(key)-1] == '"' || key[0] == '\'' && key[len(key)-1] == '\'') {
		key = key[1 : len(key)-1]
	}
	if key == "" {
		return "", errors.New("empty key")
	}
	if _, err := os.Stat(key); err != nil {
		return key, nil //nolint:nilerr // not a file: the argument is the passphrase
	}
	b, err := os.ReadFile(key) //nolint:gosec // key path is chosen by the operator
	if err != nil {
		return "", fmt.Errorf("read key file: %w", err)
	}
	contents := strings.TrimSpace(string(b))
	if contents == "" {
		return "", ErrEmptyKey
	}
	return contents, nil
}
