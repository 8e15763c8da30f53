package mirror

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/exponential-tech/unifier-mirror/internal/catalog"
)

// Verify reports whether the local file at path is a complete copy of the
// partition. The check degrades with catalog metadata: checksum when the
// catalog supplied one, else size, else bare existence. A missing file is
// not an error.
func Verify(part catalog.Partition, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory, expected a file", path)
	}

	if part.SizeBytes > 0 && info.Size() != part.SizeBytes {
		return false, nil
	}

	if part.Checksum != "" {
		sum, err := Checksum(path)
		if err != nil {
			return false, err
		}
		if sum != part.Checksum {
			return false, nil
		}
	}

	return true, nil
}

// Checksum computes the content hash of a file, rendered as "sha256:<hex>".
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
