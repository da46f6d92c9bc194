package balancer

import (
	"time"
)

// TickReport summarizes a single tick
type TickReport struct {
	Started  time.Time       `json:"started"`
	Duration time.Duration   `json:"duration"`
	Skipped  bool            `json:"skipped"`
	Updated  int             `json:"updated"`
	Failed   int             `json:"failed"`
	Error    string          `json:"error,omitempty"`
	Results  []ChannelResult `json:"results,omitempty"`
}

// ChannelResult is the outcome of reconciling a single channel
type ChannelResult struct {
	ChanPoint   string  `json:"chan_point"`
	FeeRate     float64 `json:"fee_rate,omitempty"`
	MaxHtlcMsat uint64  `json:"max_htlc_msat,omitempty"`
	Err         error   `json:"-"`
	Error       string  `json:"error,omitempty"`
}
