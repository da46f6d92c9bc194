package bdb

import (
	"math"
)

type ChanId uint64

type Channel struct {
	Active       bool
	ChanId       ChanId
	ChanPoint    string
	RemotePubKey string
	LocalBalance uint64
	Capacity     uint64
}

// PolicyUpdate is the routing policy that gets advertised for a single channel
type PolicyUpdate struct {
	ChanPoint     ChanPoint
	BaseFeeMsat   int64
	FeeRate       float64
	TimeLockDelta uint32
	MaxHtlcMsat   uint64
}

// FeeRatePpm returns the fee rate in parts per million, as the node expects it
func (u *PolicyUpdate) FeeRatePpm() uint32 {
	return uint32(math.Round(u.FeeRate * 1000000))
}
