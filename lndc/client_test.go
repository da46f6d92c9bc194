package lndc

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/litch/lndbalancer/bdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type fakeLightningClient struct {
	lnrpc.LightningClient

	channels      []*lnrpc.Channel
	listErr       error
	updateRes     *lnrpc.PolicyUpdateResponse
	updateErr     error
	lastListReq   *lnrpc.ListChannelsRequest
	lastUpdateReq *lnrpc.PolicyUpdateRequest
	macaroon      string
}

func (f *fakeLightningClient) recordMacaroon(ctx context.Context) {
	md, _ := metadata.FromOutgoingContext(ctx)
	if values := md.Get("macaroon"); len(values) > 0 {
		f.macaroon = values[0]
	}
}

func (f *fakeLightningClient) ListChannels(ctx context.Context, in *lnrpc.ListChannelsRequest,
	opts ...grpc.CallOption) (*lnrpc.ListChannelsResponse, error) {

	f.recordMacaroon(ctx)
	f.lastListReq = in
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &lnrpc.ListChannelsResponse{Channels: f.channels}, nil
}

func (f *fakeLightningClient) UpdateChannelPolicy(ctx context.Context, in *lnrpc.PolicyUpdateRequest,
	opts ...grpc.CallOption) (*lnrpc.PolicyUpdateResponse, error) {

	f.recordMacaroon(ctx)
	f.lastUpdateReq = in
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.updateRes != nil {
		return f.updateRes, nil
	}
	return &lnrpc.PolicyUpdateResponse{}, nil
}

func testUpdate() *bdb.PolicyUpdate {
	return &bdb.PolicyUpdate{
		ChanPoint:     bdb.ChanPoint{FundingTxid: "a1b2c3", OutputIndex: 2},
		BaseFeeMsat:   1000,
		FeeRate:       0.000402,
		TimeLockDelta: 144,
		MaxHtlcMsat:   900_000_000,
	}
}

func TestChannels(t *testing.T) {
	fake := &fakeLightningClient{
		channels: []*lnrpc.Channel{
			{
				Active:       true,
				ChanId:       613315282598428673,
				ChannelPoint: "a1b2c3:0",
				RemotePubkey: "0374ecf61ed6c1208c42339f47decde2bc0c4393ac95f07827b3471e939d7eb961",
				LocalBalance: 200_000,
				Capacity:     1_000_000,
			},
			{
				Active:       true,
				ChanId:       2,
				ChannelPoint: "d4e5f6:1",
				LocalBalance: 0,
				Capacity:     500_000,
			},
		},
	}
	client := newClient(nil, fake, "0201036c6e64")

	channels, err := client.Channels(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, fake.lastListReq.ActiveOnly)
	assert.Equal(t, "0201036c6e64", fake.macaroon)
	require.Len(t, channels, 2)
	assert.Equal(t, &bdb.Channel{
		Active:       true,
		ChanId:       613315282598428673,
		ChanPoint:    "a1b2c3:0",
		RemotePubKey: "0374ecf61ed6c1208c42339f47decde2bc0c4393ac95f07827b3471e939d7eb961",
		LocalBalance: 200_000,
		Capacity:     1_000_000,
	}, channels[0])
	assert.Equal(t, "d4e5f6:1", channels[1].ChanPoint)

	require.NoError(t, client.Close())
}

func TestChannelsError(t *testing.T) {
	fake := &fakeLightningClient{listErr: status.Error(codes.Unavailable, "node is syncing")}
	client := newClient(nil, fake, "")

	_, err := client.Channels(context.Background(), true)
	assert.Error(t, err)
}

func TestUpdateChannelPolicy(t *testing.T) {
	fake := &fakeLightningClient{}
	client := newClient(nil, fake, "0201036c6e64")

	require.NoError(t, client.UpdateChannelPolicy(context.Background(), testUpdate()))

	req := fake.lastUpdateReq
	require.NotNil(t, req)
	scope, ok := req.Scope.(*lnrpc.PolicyUpdateRequest_ChanPoint)
	require.True(t, ok)
	assert.Equal(t, "a1b2c3", scope.ChanPoint.GetFundingTxidStr())
	assert.Equal(t, uint32(2), scope.ChanPoint.OutputIndex)
	assert.Equal(t, int64(1000), req.BaseFeeMsat)
	assert.Equal(t, uint32(402), req.FeeRatePpm)
	assert.Equal(t, uint32(144), req.TimeLockDelta)
	assert.Equal(t, uint64(900_000_000), req.MaxHtlcMsat)
	assert.Equal(t, "0201036c6e64", fake.macaroon)
}

func TestUpdateChannelPolicyFailedUpdates(t *testing.T) {
	fake := &fakeLightningClient{
		updateRes: &lnrpc.PolicyUpdateResponse{
			FailedUpdates: []*lnrpc.FailedUpdate{
				{
					Outpoint:    &lnrpc.OutPoint{TxidStr: "a1b2c3", OutputIndex: 2},
					Reason:      lnrpc.UpdateFailure_UPDATE_FAILURE_INVALID_PARAMETER,
					UpdateError: "max_htlc exceeds capacity",
				},
				{
					Outpoint: &lnrpc.OutPoint{TxidStr: "a1b2c3", OutputIndex: 2},
					Reason:   lnrpc.UpdateFailure_UPDATE_FAILURE_NOT_FOUND,
				},
			},
		},
	}
	client := newClient(nil, fake, "")

	err := client.UpdateChannelPolicy(context.Background(), testUpdate())

	var rejected bdb.PolicyUpdateRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "a1b2c3:2", rejected.ChanPoint)
	assert.Equal(t, "max_htlc exceeds capacity; UPDATE_FAILURE_NOT_FOUND", rejected.Reason)
}

func TestUpdateChannelPolicyRPCError(t *testing.T) {
	cause := status.Error(codes.InvalidArgument, "fee rate too high")
	fake := &fakeLightningClient{updateErr: cause}
	client := newClient(nil, fake, "")

	err := client.UpdateChannelPolicy(context.Background(), testUpdate())

	var rejected bdb.PolicyUpdateRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "fee rate too high", rejected.Reason)
	assert.ErrorIs(t, err, cause)
}

func TestUpdateChannelPolicyTransportError(t *testing.T) {
	for _, code := range []codes.Code{codes.DeadlineExceeded, codes.Unavailable, codes.Canceled} {
		t.Run(code.String(), func(t *testing.T) {
			cause := status.Error(code, "no answer")
			fake := &fakeLightningClient{updateErr: cause}
			client := newClient(nil, fake, "")

			err := client.UpdateChannelPolicy(context.Background(), testUpdate())

			var rejected bdb.PolicyUpdateRejectedError
			assert.False(t, errors.As(err, &rejected))
			assert.ErrorIs(t, err, cause)
		})
	}
}

func writeTestCert(t *testing.T) []byte {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"lnd autogenerated cert"}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestMakeTlsCertFromPath(t *testing.T) {
	dir := t.TempDir()
	pemBytes := writeTestCert(t)

	pemPath := filepath.Join(dir, "tls.cert")
	require.NoError(t, os.WriteFile(pemPath, pemBytes, 0600))

	_, err := makeTlsCertFromPath(pemPath)
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(pemBytes)), "\n")
	bare := strings.Join(lines[1:len(lines)-1], "\n")
	barePath := filepath.Join(dir, "bare.cert")
	require.NoError(t, os.WriteFile(barePath, []byte(bare), 0600))

	_, err = makeTlsCertFromPath(barePath)
	assert.NoError(t, err)

	garbagePath := filepath.Join(dir, "garbage.cert")
	require.NoError(t, os.WriteFile(garbagePath, []byte("not a cert"), 0600))

	_, err = makeTlsCertFromPath(garbagePath)
	assert.Error(t, err)

	_, err = makeTlsCertFromPath(filepath.Join(dir, "missing.cert"))
	assert.Error(t, err)
}

func TestMakeMacaroonFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin.macaroon")
	require.NoError(t, os.WriteFile(path, []byte{0x02, 0x01, 0x03, 'l', 'n', 'd'}, 0600))

	macaroon, err := makeMacaroonFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "0201036c6e64", macaroon)
}

func TestDialMissingCert(t *testing.T) {
	_, err := Dial(context.Background(), &Config{
		TlsCertPath:  filepath.Join(t.TempDir(), "tls.cert"),
		RpcServer:    "localhost:10009",
		MacaroonPath: "admin.macaroon",
	})
	assert.Error(t, err)
}
