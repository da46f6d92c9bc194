package bdb

import (
	"fmt"
)

// MalformedChannelPointError is returned for a channel point that isn't <txid>:<index>
type MalformedChannelPointError struct {
	ChanPoint string
	Reason    string
}

func (err MalformedChannelPointError) Error() string {
	return fmt.Sprintf("Malformed channel point %q: %v", err.ChanPoint, err.Reason)
}

// InvalidChannelStateError is returned when a channel's balances can't be used to compute a policy
type InvalidChannelStateError struct {
	ChanPoint    string
	LocalBalance uint64
	Capacity     uint64
	Reason       string
}

func (err InvalidChannelStateError) Error() string {
	return fmt.Sprintf("Invalid state of channel %v (%v/%v): %v",
		err.ChanPoint, err.LocalBalance, err.Capacity, err.Reason)
}

// PolicyUpdateRejectedError is returned when the node refused a policy update
type PolicyUpdateRejectedError struct {
	ChanPoint string
	Reason    string
	Err       error
}

func (err PolicyUpdateRejectedError) Error() string {
	return fmt.Sprintf("Policy update for channel %v rejected: %v", err.ChanPoint, err.Reason)
}

func (err PolicyUpdateRejectedError) Unwrap() error {
	return err.Err
}

// ConnectionError is returned when the node couldn't be reached
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (err ConnectionError) Error() string {
	return fmt.Sprintf("Could not connect to node %v: %v", err.Endpoint, err.Err)
}

func (err ConnectionError) Unwrap() error {
	return err.Err
}

// ChannelFetchError is returned when the channel list couldn't be fetched
type ChannelFetchError struct {
	Err error
}

func (err ChannelFetchError) Error() string {
	return fmt.Sprintf("Could not fetch channels: %v", err.Err)
}

func (err ChannelFetchError) Unwrap() error {
	return err.Err
}
