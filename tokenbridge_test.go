package tokenbridge

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/qa"
	"github.com/outofforest/tokenbridge/config"
	"github.com/outofforest/tokenbridge/state"
	"github.com/outofforest/tokenbridge/transport"
	"github.com/outofforest/tokenbridge/types"
	"github.com/outofforest/tokenbridge/wire"
)

var (
	owner  = types.Address{0x01}
	user   = types.Address{0x02}
	source = types.Address{0xa0}
)

func newConfig(t *testing.T) config.Config {
	return config.Config{
		JournalDir:         t.TempDir(),
		MetricsAddress:     "localhost:0",
		ProgramID:          types.Address{0xbb},
		TransportProgramID: types.Address{0xee},
		Owner:              owner,
		TokenMint:          types.Address{0x0a},
		LocalNetworkID:     1,
		Surcharge:          10_000,
		SurchargeMode:      types.SurchargeBoth,
	}
}

func postHello(t *testing.T, n *Node, sequence types.Sequence, amount uint64) transport.Hash {
	var h transport.Hash
	require.NoError(t, n.Store.Update(func(tx *state.Tx) error {
		h = n.Transport.Post(tx, transport.VerifiedMessage{
			SourceNetworkID: 2,
			SourceAddress:   source,
			Sequence:        sequence,
			Payload:         wire.MustEncode(wire.NewHello(amount)),
		})
		return nil
	}))
	return h
}

func TestBootstrapOnFirstStart(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)
	cfg := newConfig(t)

	n, err := New(ctx, cfg)
	requireT.NoError(err)
	defer n.Close()

	bridgeConfig, err := n.Store.View().Config()
	requireT.NoError(err)
	requireT.Equal(owner, bridgeConfig.Owner)
	requireT.Equal(cfg.TokenMint, bridgeConfig.TokenMint)
	requireT.False(bridgeConfig.PublicMint)

	alive, exists := n.Store.View().Sent(0)
	requireT.True(exists)
	requireT.Equal(wire.MustEncode(wire.Alive{OriginID: cfg.ProgramID}), alive.Payload)
}

func TestRecovery(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)
	cfg := newConfig(t)

	n, err := New(ctx, cfg)
	requireT.NoError(err)

	requireT.NoError(n.Bridge.RegisterEmitter(ctx, owner, 2, source))
	_, err = n.Bridge.SetPublicMint(ctx, owner, true)
	requireT.NoError(err)

	minted, err := n.Bridge.ReceiveAndMint(ctx, user, postHello(t, n, 7, 1_000_000))
	requireT.NoError(err)
	requireT.EqualValues(990_000, minted.Amount)

	sent, err := n.Bridge.BurnAndNotify(ctx, user, 100, []byte{0x05})
	requireT.NoError(err)
	requireT.EqualValues(1, sent.Sequence)
	requireT.NoError(n.Close())

	n, err = New(ctx, cfg)
	requireT.NoError(err)
	defer n.Close()

	v := n.Store.View()
	bridgeConfig, err := v.Config()
	requireT.NoError(err)
	requireT.True(bridgeConfig.PublicMint)
	requireT.True(v.VerifyEmitter(2, source))
	_, exists := v.Received(2, 7)
	requireT.True(exists)
	recovered, exists := v.Sent(1)
	requireT.True(exists)
	requireT.Equal(sent, recovered)
	requireT.EqualValues(2, n.Transport.NextSequence(v, n.Bridge.Emitter()))

	_, err = n.Bridge.ReceiveAndMint(ctx, user, postHello(t, n, 7, 1_000_000))
	requireT.ErrorIs(err, types.ErrDuplicateMessage)

	_, err = n.Bridge.ReceiveAndMint(ctx, user, postHello(t, n, 8, 1_000_000))
	requireT.NoError(err)

	sent, err = n.Bridge.BurnAndNotify(ctx, user, 100, []byte{0x05})
	requireT.NoError(err)
	requireT.EqualValues(2, sent.Sequence)
}

func TestServeMetrics(t *testing.T) {
	requireT := require.New(t)
	ctx, cancel := context.WithCancel(qa.NewContext(t))
	defer cancel()

	n, err := New(ctx, newConfig(t))
	requireT.NoError(err)
	defer n.Close()

	l, err := net.Listen("tcp", "localhost:0")
	requireT.NoError(err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Serve(ctx, l)
	}()

	resp, err := http.Get("http://" + l.Addr().String() + "/metrics")
	requireT.NoError(err)
	body, err := io.ReadAll(resp.Body)
	requireT.NoError(err)
	requireT.NoError(resp.Body.Close())
	requireT.Equal(http.StatusOK, resp.StatusCode)
	requireT.Contains(string(body), "tokenbridge_published_total 1")

	cancel()
	requireT.ErrorIs(<-errCh, context.Canceled)
}
