package schedule

import "math/bits"

func mulU64(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

func addU64(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// modAdd returns (a + b) mod m for a, b < m without overflowing.
func modAdd(a, b, m uint64) uint64 {
	if a >= m-b {
		return a - (m - b)
	}

	return a + b
}
