package parallel

// Band is a half-open range [Lo, Hi) of rows.
type Band struct {
	Lo, Hi int
}

// Len returns the number of rows in the band.
func (b Band) Len() int { return b.Hi - b.Lo }

// Split divides [0, n) into at most parts contiguous bands whose lengths
// differ by at most one. It returns nil for n <= 0 and one band when
// parts <= 1.
func Split(n, parts int) []Band {
	if n <= 0 {
		return nil
	}
	parts = min(max(parts, 1), n)

	bands := make([]Band, parts)
	base, extra := n/parts, n%parts
	lo := 0
	for i := range bands {
		size := base
		if i < extra {
			size++
		}
		bands[i] = Band{Lo: lo, Hi: lo + size}
		lo += size
	}
	return bands
}
