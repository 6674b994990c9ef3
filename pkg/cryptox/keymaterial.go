package cryptox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LoadOrGenerateKeyMaterial reads the private key material stored at path.
// When the file does not exist a fresh 256-bit value is generated and
// written with 0600 permissions so it survives restarts.
func LoadOrGenerateKeyMaterial(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("key material path is empty")
	}

	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}

	material, err := ReadKeyMaterial(path)
	if !errors.Is(err, fs.ErrNotExist) {
		return material, err
	}

	generated, err := GenerateToken(KeySize256)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(generated), 0600); err != nil {
		return nil, fmt.Errorf("write key material: %w", err)
	}
	return []byte(generated), nil
}

// ReadKeyMaterial reads existing key material from path. A missing file
// yields an error wrapping fs.ErrNotExist.
func ReadKeyMaterial(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read key material: %w", err)
	}
	material := strings.TrimSpace(string(data))
	if material == "" {
		return nil, fmt.Errorf("key material file %s is empty", path)
	}
	return []byte(material), nil
}
