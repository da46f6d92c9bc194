package bdb

import (
	"fmt"
	"strconv"
	"strings"
)

// ChanPoint is the funding outpoint that uniquely names a channel
type ChanPoint struct {
	FundingTxid string
	OutputIndex uint32
}

// ParseChanPoint parses a channel point in the format <txid>:<index>
func ParseChanPoint(str string) (ChanPoint, error) {
	chanPoint := ChanPoint{}

	parts := strings.Split(strings.TrimSpace(str), ":")
	if len(parts) != 2 {
		return chanPoint, MalformedChannelPointError{
			ChanPoint: str,
			Reason:    "expected format <txid>:<index>",
		}
	}

	if parts[0] == "" {
		return chanPoint, MalformedChannelPointError{
			ChanPoint: str,
			Reason:    "missing funding txid",
		}
	}
	chanPoint.FundingTxid = parts[0]

	outputIndex, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return chanPoint, MalformedChannelPointError{
			ChanPoint: str,
			Reason:    fmt.Sprintf("could not parse output index: %v", err),
		}
	}
	chanPoint.OutputIndex = uint32(outputIndex)

	return chanPoint, nil
}

func (c ChanPoint) String() string {
	return fmt.Sprintf("%s:%d", c.FundingTxid, c.OutputIndex)
}
