package tokenbridge

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/tokenbridge/bridge"
	"github.com/outofforest/tokenbridge/config"
	"github.com/outofforest/tokenbridge/journal"
	"github.com/outofforest/tokenbridge/state"
	"github.com/outofforest/tokenbridge/token"
	"github.com/outofforest/tokenbridge/transport"
	"github.com/outofforest/tokenbridge/types"
)

var _ state.Sink = &journal.Journal{}

// Node is the bridge running on top of the journaled store.
// Operations are called directly on Bridge, the node itself serves only metrics.
type Node struct {
	Bridge    *bridge.Bridge
	Store     *state.Store
	Transport *transport.Memory
	Ledger    token.Ledger
	Registry  *prometheus.Registry

	journal *journal.Journal
}

// New opens the journal, recovers the state and bootstraps the bridge if it hasn't been bootstrapped yet.
func New(ctx context.Context, cfg config.Config) (*Node, error) {
	j, entities, err := journal.Open(cfg.JournalDir)
	if err != nil {
		return nil, err
	}

	n, err := newNode(ctx, cfg, j, entities)
	if err != nil {
		_ = j.Close()
		return nil, err
	}
	return n, nil
}

func newNode(ctx context.Context, cfg config.Config, j *journal.Journal, entities []any) (*Node, error) {
	store, err := state.New(j, append(token.Tables(), transport.Tables()...)...)
	if err != nil {
		return nil, err
	}
	if err := store.Restore(entities...); err != nil {
		return nil, err
	}

	n := &Node{
		Store:     store,
		Transport: transport.NewMemory(cfg.TransportProgramID),
		Registry:  prometheus.NewRegistry(),
		journal:   j,
	}
	n.Bridge, err = bridge.New(bridge.Config{
		ProgramID:  cfg.ProgramID,
		Store:      store,
		Transport:  n.Transport,
		Ledger:     n.Ledger,
		Registerer: n.Registry,
	})
	if err != nil {
		return nil, err
	}

	log := logger.Get(ctx)
	bridgeConfig, err := store.View().Config()
	switch {
	case err == nil:
		if err := n.resume(bridgeConfig); err != nil {
			return nil, err
		}
		log.Info("Bridge state recovered",
			zap.Int("entities", len(entities)),
			zap.Int("emitters", len(store.View().Emitters())),
			zap.Stringer("tokenMint", bridgeConfig.TokenMint))
	case errors.Is(err, types.ErrNotBootstrapped):
		if err := n.createMint(cfg.TokenMint); err != nil {
			return nil, err
		}
		if _, err := n.Bridge.Bootstrap(ctx, cfg.Owner, bridge.BootstrapParams{
			LocalNetworkID: cfg.LocalNetworkID,
			TokenMint:      cfg.TokenMint,
			Surcharge:      cfg.Surcharge,
			SurchargeMode:  cfg.SurchargeMode,
		}); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return n, nil
}

// Close closes the journal.
func (n *Node) Close() error {
	return n.journal.Close()
}

// resume rebuilds the in-process collaborators from the recovered bridge records.
func (n *Node) resume(cfg types.Config) error {
	if err := n.createMint(cfg.TokenMint); err != nil {
		return err
	}
	return n.Store.Update(func(tx *state.Tx) error {
		for _, sent := range tx.SentRecords() {
			if err := n.Transport.Republish(tx, transport.PublishedMessage{
				Sequence: sent.Sequence,
				Emitter:  n.Bridge.Emitter(),
				Message:  sent.Message,
				BatchID:  cfg.BatchID,
				Finality: cfg.Finality,
				Payload:  sent.Payload,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (n *Node) createMint(mint types.Address) error {
	return n.Store.Update(func(tx *state.Tx) error {
		return n.Ledger.CreateMint(tx, mint, bridge.TokenDecimals, n.Bridge.MintAuthority())
	})
}

// Run runs the bridge node until context is canceled.
func Run(ctx context.Context, cfg config.Config) error {
	n, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	l, err := net.Listen("tcp", cfg.MetricsAddress)
	if err != nil {
		return errors.WithStack(err)
	}

	return n.Serve(ctx, l)
}

// Serve exposes metrics of the node on the listener until context is canceled.
func (n *Node) Serve(ctx context.Context, l net.Listener) error {
	log := logger.Get(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(n.Registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("metrics", parallel.Fail, func(ctx context.Context) error {
			log.Info("Serving metrics", zap.Stringer("address", l.Addr()))
			err := server.Serve(l)
			if errors.Is(err, http.ErrServerClosed) {
				return errors.WithStack(ctx.Err())
			}
			return errors.WithStack(err)
		})
		spawn("shutdown", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return errors.WithStack(err)
			}
			return errors.WithStack(ctx.Err())
		})
		return nil
	})
}
