package types

// Part is one contiguous byte range of the archive sent as a single
// upload request.
type Part struct {
	// Number is the 1-based sequence number.
	Number int `json:"number"`
	// Offset is the first byte of the part within the archive.
	Offset int64 `json:"offset"`
	// Length is the number of bytes in the part. Only the last part may
	// be shorter than the configured part size.
	Length int64 `json:"length"`
	// Total is the number of parts in the run.
	Total int `json:"total"`
}

// End returns the offset one past the last byte of the part.
func (p Part) End() int64 {
	return p.Offset + p.Length
}

// IsLast reports whether p is the final part of its run.
func (p Part) IsLast() bool {
	return p.Number == p.Total
}
