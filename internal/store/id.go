package store

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// FolderID derives a stable identifier from a folder path. The first 16
// bytes of the BLAKE3 digest keep IDs short enough for log lines.
func FolderID(path string) string {
	sum := blake3.Sum256([]byte(path))

	return hex.EncodeToString(sum[:16])
}
