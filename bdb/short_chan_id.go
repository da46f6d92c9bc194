package bdb

import (
	"fmt"
)

type ShortChanId struct {
	BlockHeight uint32
	TxIndex     uint32
	TxPosition  uint16
}

func NewShortChanIdFromInt(chanID uint64) ShortChanId {
	return ShortChanId{
		BlockHeight: uint32(chanID >> 40),
		TxIndex:     uint32(chanID>>16) & 0xFFFFFF,
		TxPosition:  uint16(chanID),
	}
}

func (c ShortChanId) ToUint64() uint64 {
	return (uint64(c.BlockHeight) << 40) | (uint64(c.TxIndex) << 16) | (uint64(c.TxPosition))
}

// String formats the short channel id the way lnd prints it, e.g. 557807x665x1
func (c ShortChanId) String() string {
	return fmt.Sprintf("%dx%dx%d", c.BlockHeight, c.TxIndex, c.TxPosition)
}

// ShortChanId returns the human readable form of the channel id
func (c ChanId) ShortChanId() ShortChanId {
	return NewShortChanIdFromInt(uint64(c))
}
