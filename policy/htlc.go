package policy

import (
	"math"
)

const minHtlcMax = 1000

// htlcLadder holds the balance steps the htlc ceiling snaps to, ascending
var htlcLadder = [...]uint64{
	1_000,
	100_000,
	250_000,
	1_000_000,
	10_000_000,
	50_000_000,
	100_000_000,
	250_000_000,
	500_000_000,
	1_000_000_000,
	2_000_000_000,
	3_000_000_000,
	4_000_000_000,
	5_000_000_000,
	7_500_000_000,
	10_000_000_000,
	15_000_000_000,
	20_000_000_000,
}

// HtlcMax returns the largest single htlc a channel should forward. The
// balance snaps down to the closest ladder step and 90% of that step is
// advertised, but never less than 1000.
func HtlcMax(localBalance uint64) uint64 {
	step := localBalance
	for i := len(htlcLadder) - 1; i >= 0; i-- {
		if localBalance >= htlcLadder[i] {
			step = htlcLadder[i]
			break
		}
	}

	capped := math.Round(0.9 * float64(step))
	if capped < minHtlcMax {
		capped = minHtlcMax
	}

	return uint64(capped)
}
