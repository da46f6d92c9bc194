package policy

import (
	"github.com/litch/lndbalancer/bdb"
	"github.com/litch/lndbalancer/config"
)

// ForChannel builds the policy update for a channel. Channel balances are in
// satoshi, the htlc ceiling is computed and advertised in millisatoshi.
func ForChannel(channel *bdb.Channel, cfg *config.PolicyConfig) (*bdb.PolicyUpdate, error) {
	chanPoint, err := bdb.ParseChanPoint(channel.ChanPoint)
	if err != nil {
		return nil, err
	}

	feeRate, err := FeeTarget(channel, cfg)
	if err != nil {
		return nil, err
	}

	return &bdb.PolicyUpdate{
		ChanPoint:     chanPoint,
		BaseFeeMsat:   BaseFeeMsat,
		FeeRate:       feeRate,
		TimeLockDelta: TimeLockDelta,
		// The node reports balances in satoshi but takes max_htlc in msat.
		MaxHtlcMsat:   HtlcMax(channel.LocalBalance * 1000),
	}, nil
}
