package upload

import (
	"fmt"

	"github.com/pithecene-io/shipyard/types"
)

// MiB is the unit part sizes are configured in.
const MiB int64 = 1 << 20

// PartCount returns ceil(size / partSize), the number of parts an
// archive of the given size is split into.
func PartCount(size, partSize int64) int {
	if size <= 0 || partSize <= 0 {
		return 0
	}
	return int((size + partSize - 1) / partSize)
}

// Plan splits [0, size) into consecutive parts of partSize bytes. Only
// the last part may be shorter. An empty archive yields no parts.
func Plan(size, partSize int64) ([]types.Part, error) {
	if partSize <= 0 {
		return nil, fmt.Errorf("part size must be positive, got %d", partSize)
	}
	if size < 0 {
		return nil, fmt.Errorf("archive size must not be negative, got %d", size)
	}

	total := PartCount(size, partSize)
	parts := make([]types.Part, 0, total)
	for offset := int64(0); offset < size; offset += partSize {
		parts = append(parts, types.Part{
			Number: len(parts) + 1,
			Offset: offset,
			Length: min(partSize, size-offset),
			Total:  total,
		})
	}
	if len(parts) != total {
		return nil, fmt.Errorf("planned %d parts, expected %d", len(parts), total)
	}
	return parts, nil
}
