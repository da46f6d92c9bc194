package balancer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/litch/lndbalancer/bdb"
	"github.com/litch/lndbalancer/config"
	"github.com/litch/lndbalancer/policy"
	"github.com/sirupsen/logrus"
)

// dispatcher applies computed policies to the channels of one tick. Policy
// math runs concurrently, calls against the node connection are serialized.
type dispatcher struct {
	node    Node
	cfg     *config.AppConfig
	logger  logrus.FieldLogger
	metrics *Metrics
	timeout time.Duration

	nodeMu sync.Mutex
}

func newDispatcher(node Node, cfg *config.AppConfig, logger logrus.FieldLogger, metrics *Metrics) *dispatcher {
	return &dispatcher{
		node:    node,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		timeout: cfg.RPCTimeoutDuration(),
	}
}

func (d *dispatcher) dispatch(ctx context.Context, channel *bdb.Channel) (result ChannelResult) {
	result.ChanPoint = channel.ChanPoint

	logger := d.logger.WithFields(logrus.Fields{
		"chan_point": channel.ChanPoint,
		"chan_id":    channel.ChanId.ShortChanId().String(),
	})

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("panic while updating channel: %v", r)
		}
		if result.Err != nil {
			result.Error = result.Err.Error()
			logger.WithError(result.Err).Error("Could not update channel policy")
		}
		d.metrics.channelUpdated(resultLabel(result.Err))
	}()

	logger.Debugf("Computing policy for balance %v/%v", channel.LocalBalance, channel.Capacity)

	update, err := policy.ForChannel(channel, &d.cfg.PolicyConfig)
	if err != nil {
		result.Err = err
		return result
	}
	result.FeeRate = update.FeeRate
	result.MaxHtlcMsat = update.MaxHtlcMsat

	logger = logger.WithFields(logrus.Fields{
		"fee_rate":      update.FeeRate,
		"max_htlc_msat": update.MaxHtlcMsat,
	})

	if err := d.submit(ctx, update); err != nil {
		result.Err = err
		return result
	}

	logger.Info("Updated channel policy")

	return result
}

// submit sends the update, holding the node connection for the duration of
// the call
func (d *dispatcher) submit(ctx context.Context, update *bdb.PolicyUpdate) error {
	d.nodeMu.Lock()
	defer d.nodeMu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return d.node.UpdateChannelPolicy(callCtx, update)
}

func resultLabel(err error) string {
	var (
		malformed bdb.MalformedChannelPointError
		invalid   bdb.InvalidChannelStateError
		rejected  bdb.PolicyUpdateRejectedError
	)

	switch {
	case err == nil:
		return "updated"
	case errors.As(err, &malformed):
		return "malformed_chan_point"
	case errors.As(err, &invalid):
		return "invalid_channel_state"
	case errors.As(err, &rejected):
		return "rejected"
	default:
		return "failed"
	}
}
