package imagemin

import (
	"crypto/md5" //nolint:gosec // content fingerprint for exclusion lists, not a security boundary
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/pithecene-io/shipyard/iox"
)

// Supported content hash algorithms.
const (
	HashMD5    = "md5"
	HashSHA256 = "sha256"
	HashBLAKE3 = "blake3"
)

// newHasher returns a hash.Hash for the named algorithm. Empty means md5,
// which matches the output of md5sum used to build most exclusion lists.
func newHasher(algo string) (hash.Hash, error) {
	switch strings.ToLower(algo) {
	case "", HashMD5:
		return md5.New(), nil //nolint:gosec // see import
	case HashSHA256:
		return sha256.New(), nil
	case HashBLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash %q (must be md5, sha256 or blake3)", algo)
	}
}

// ValidHash reports whether algo names a supported hash.
func ValidHash(algo string) bool {
	_, err := newHasher(algo)
	return err == nil
}

// HashFile returns the lowercase hex digest of the file at path.
func HashFile(path, algo string) (string, error) {
	h, err := newHasher(algo)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer iox.DiscardClose(f)

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
