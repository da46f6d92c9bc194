// Package policy computes the routing policy of a channel from its balance.
package policy

import (
	"math"

	"github.com/go-errors/errors"
	"github.com/litch/lndbalancer/bdb"
	"github.com/litch/lndbalancer/config"
)

const (
	// BaseFeeMsat is the fixed part of the routing fee advertised for every channel
	BaseFeeMsat = 1000
	// TimeLockDelta is the CLTV delta advertised for every channel
	TimeLockDelta = 144
)

// FeeTarget returns the fee rate for a channel as a fraction (ppm / 1e6).
// The share of the capacity that isn't ours is sorted into one of
// FeeIntervals+1 buckets, each bucket raising the fee by an equal step from
// FeeMin towards FeeMax.
func FeeTarget(channel *bdb.Channel, cfg *config.PolicyConfig) (float64, error) {
	if channel.Capacity == 0 {
		return 0, bdb.InvalidChannelStateError{
			ChanPoint:    channel.ChanPoint,
			LocalBalance: channel.LocalBalance,
			Capacity:     channel.Capacity,
			Reason:       "zero capacity",
		}
	}
	if channel.LocalBalance > channel.Capacity {
		return 0, bdb.InvalidChannelStateError{
			ChanPoint:    channel.ChanPoint,
			LocalBalance: channel.LocalBalance,
			Capacity:     channel.Capacity,
			Reason:       "local balance exceeds capacity",
		}
	}
	if cfg.FeeIntervals == 0 {
		return 0, errors.New("dynamic_fee_intervals must be at least 1")
	}

	ours := float64(channel.LocalBalance)
	total := float64(channel.Capacity)
	proportion := 1.0 - (ours / total)

	feeMin := float64(cfg.FeeMin)
	feeMax := float64(cfg.FeeMax)
	intervals := float64(cfg.FeeIntervals)

	intervalSize := 1.0 / intervals
	bucket := math.Round(proportion / intervalSize)

	fee := feeMin + ((feeMax-feeMin)/intervals)*bucket
	fee = math.Max(feeMin, math.Min(feeMax, fee))

	return fee / 1000000.0, nil
}
