package fs

import (
	"errors"
	"os"
	"strings"

	"github.com/foretell-app/foretell/utils"
)

const (
	ErrExists = utils.Error("file already exists")

	SecretFileMode = 0o600
)

// FileExists returns true if filename exists and is not a directory; stat errors read as false
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

// DirExists returns true if dirname exists and is a directory; stat errors read as false
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	return err == nil && info.IsDir()
}

// ReadString reads a text file with surrounding whitespace removed
func ReadString(filename string) (string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteSecret creates filename readable by the owner only; an existing file is never replaced
func WriteSecret(filename string, data []byte) error {
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, SecretFileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrExists
		}
		return err
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(filename)
		return err
	}
	return f.Close()
}
