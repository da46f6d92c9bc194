package lndc

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"os"
	"strings"

	"github.com/kr/pretty"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/litch/lndbalancer/bdb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const maxGRPCMsgSize = 32 * 1024 * 1024

type Client struct {
	conn     *grpc.ClientConn
	client   lnrpc.LightningClient
	macaroon string
}

type Config struct {
	TlsCertPath  string
	RpcServer    string
	MacaroonPath string
}

// Dial connects to lnd and blocks until the connection is up or ctx expires
func Dial(ctx context.Context, config *Config) (*Client, error) {
	cert, err := makeTlsCertFromPath(config.TlsCertPath)
	if err != nil {
		return nil, errors.Errorf("Could not make TLS cert: %v", err)
	}

	macaroon, err := makeMacaroonFromPath(config.MacaroonPath)
	if err != nil {
		return nil, errors.Errorf("Could not make macaroon: %v", err)
	}

	creds := credentials.NewClientTLSFromCert(cert, "")

	conn, err := grpc.DialContext(ctx, config.RpcServer,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxGRPCMsgSize)),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, errors.Errorf("Could not connect to lightning node: %v", err)
	}

	return newClient(conn, lnrpc.NewLightningClient(conn), macaroon), nil
}

func newClient(conn *grpc.ClientConn, client lnrpc.LightningClient, macaroon string) *Client {
	return &Client{
		conn:     conn,
		client:   client,
		macaroon: macaroon,
	}
}

func (client *Client) Close() error {
	if client.conn == nil {
		return nil
	}
	return client.conn.Close()
}

func (client *Client) withMacaroon(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "macaroon", client.macaroon)
}

// Channels lists the channels of the node
func (client *Client) Channels(ctx context.Context, activeOnly bool) ([]*bdb.Channel, error) {
	channelList, err := client.client.ListChannels(client.withMacaroon(ctx), &lnrpc.ListChannelsRequest{
		ActiveOnly: activeOnly,
	})
	if err != nil {
		return nil, errors.Errorf("Could not list channels: %v", err)
	}

	channels := make([]*bdb.Channel, 0, len(channelList.Channels))
	for _, rpcChannel := range channelList.Channels {
		channel := channelFromRPC(rpcChannel)
		log.WithField("chan_point", channel.ChanPoint).Tracef("Channel %s", pretty.Sprint(channel))
		channels = append(channels, channel)
	}

	return channels, nil
}

// UpdateChannelPolicy advertises a new routing policy for a single channel
func (client *Client) UpdateChannelPolicy(ctx context.Context, update *bdb.PolicyUpdate) error {
	res, err := client.client.UpdateChannelPolicy(client.withMacaroon(ctx), newPolicyUpdateRequest(update))
	if err != nil {
		if !isRejection(err) {
			return errors.Wrapf(err, "updating policy of %s", update.ChanPoint)
		}
		return bdb.PolicyUpdateRejectedError{
			ChanPoint: update.ChanPoint.String(),
			Reason:    status.Convert(err).Message(),
			Err:       err,
		}
	}

	return mapFailedUpdatesToTypedError(update.ChanPoint, res.FailedUpdates)
}

// isRejection reports whether the node refused the update itself, as opposed
// to the call never reaching it or timing out.
func isRejection(err error) bool {
	switch status.Code(err) {
	case codes.Unknown, codes.InvalidArgument, codes.NotFound, codes.AlreadyExists,
		codes.PermissionDenied, codes.FailedPrecondition, codes.OutOfRange:
		return true
	default:
		return false
	}
}

func channelFromRPC(channel *lnrpc.Channel) *bdb.Channel {
	return &bdb.Channel{
		Active:       channel.Active,
		ChanId:       bdb.ChanId(channel.ChanId),
		ChanPoint:    channel.ChannelPoint,
		RemotePubKey: channel.RemotePubkey,
		LocalBalance: uint64(channel.LocalBalance),
		Capacity:     uint64(channel.Capacity),
	}
}

func newPolicyUpdateRequest(update *bdb.PolicyUpdate) *lnrpc.PolicyUpdateRequest {
	return &lnrpc.PolicyUpdateRequest{
		Scope: &lnrpc.PolicyUpdateRequest_ChanPoint{
			ChanPoint: &lnrpc.ChannelPoint{
				FundingTxid: &lnrpc.ChannelPoint_FundingTxidStr{
					FundingTxidStr: update.ChanPoint.FundingTxid,
				},
				OutputIndex: update.ChanPoint.OutputIndex,
			},
		},
		BaseFeeMsat:   update.BaseFeeMsat,
		FeeRatePpm:    update.FeeRatePpm(),
		TimeLockDelta: update.TimeLockDelta,
		MaxHtlcMsat:   update.MaxHtlcMsat,
	}
}

// mapFailedUpdatesToTypedError turns the failed updates lnd reports for an
// otherwise successful call into a rejection of the channel
func mapFailedUpdatesToTypedError(chanPoint bdb.ChanPoint, failedUpdates []*lnrpc.FailedUpdate) error {
	if len(failedUpdates) == 0 {
		return nil
	}

	reasons := make([]string, 0, len(failedUpdates))
	for _, failedUpdate := range failedUpdates {
		reason := failedUpdate.UpdateError
		if reason == "" {
			reason = failedUpdate.Reason.String()
		}
		reasons = append(reasons, reason)
	}

	return bdb.PolicyUpdateRejectedError{
		ChanPoint: chanPoint.String(),
		Reason:    strings.Join(reasons, "; "),
	}
}

// makeTlsCertFromPath accepts a PEM file as written by lnd, or the bare
// base64 body of one
func makeTlsCertFromPath(path string) (*x509.CertPool, error) {
	certBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("Could not read tls cert %v", path)
	}

	cert := x509.NewCertPool()
	if ok := cert.AppendCertsFromPEM(certBytes); ok {
		return cert, nil
	}

	fullCertBytes := append([]byte("-----BEGIN CERTIFICATE-----\n"), certBytes...)
	fullCertBytes = append(fullCertBytes, []byte("\n-----END CERTIFICATE-----")...)
	if ok := cert.AppendCertsFromPEM(fullCertBytes); !ok {
		return nil, errors.New("Could not parse tls cert.")
	}

	return cert, nil
}

func makeMacaroonFromPath(path string) (string, error) {
	macaroonBytes, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Errorf("Could not read macaroon %v", path)
	}

	hexMacaroon := hex.EncodeToString(macaroonBytes)

	return hexMacaroon, nil
}
