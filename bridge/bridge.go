package bridge

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/tokenbridge/derive"
	"github.com/outofforest/tokenbridge/helpers"
	"github.com/outofforest/tokenbridge/state"
	"github.com/outofforest/tokenbridge/transport"
	"github.com/outofforest/tokenbridge/types"
	"github.com/outofforest/tokenbridge/wire"
)

const (
	// TokenDecimals is the number of decimals the bridged token must have.
	TokenDecimals = 6

	// DefaultSurcharge is the default processing surcharge, in base units of the token.
	DefaultSurcharge = 10_000
)

// Transport publishes outbound messages and provides inbound messages verified by the transport layer.
type Transport interface {
	Addresses(emitter types.Address) types.TransportAddresses
	Message(v *state.View, hash transport.Hash) (transport.VerifiedMessage, error)
	Fee(v *state.View) uint64
	PayFee(tx *state.Tx, payer, collector types.Address, amount uint64) error
	NextSequence(v *state.View, emitter types.Address) types.Sequence
	Publish(tx *state.Tx, req transport.PublishRequest) (types.Sequence, error)
}

// TokenLedger performs balance bookkeeping of the bridged token.
type TokenLedger interface {
	Decimals(v *state.View, mint types.Address) (uint8, error)
	Mint(tx *state.Tx, mint, to, authority types.Address, amount uint64) error
	Burn(tx *state.Tx, mint, from, authority types.Address, amount uint64) error
}

// Config is the configuration of the bridge.
type Config struct {
	ProgramID  types.Address
	Store      *state.Store
	Transport  Transport
	Ledger     TokenLedger
	Registerer prometheus.Registerer
}

// BootstrapParams are the parameters set once, when the bridge is bootstrapped.
type BootstrapParams struct {
	LocalNetworkID types.NetworkID
	TokenMint      types.Address
	Surcharge      uint64
	SurchargeMode  types.SurchargeMode
}

// Minted describes tokens minted for inbound message.
type Minted struct {
	NetworkID types.NetworkID
	Sequence  types.Sequence
	Recipient types.Address
	Amount    uint64
	Surcharge uint64
}

// New creates new bridge.
func New(config Config) (*Bridge, error) {
	if config.ProgramID.IsZero() {
		return nil, errors.New("program ID must not be zero")
	}

	m, err := newMetrics(config.Registerer)
	if err != nil {
		return nil, err
	}

	emitter, emitterBump, err := derive.Find(config.ProgramID, derive.SeedEmitter)
	if err != nil {
		return nil, err
	}
	mintAuthority, mintAuthorityBump, err := derive.Find(config.ProgramID, derive.SeedMintAuthority)
	if err != nil {
		return nil, err
	}

	return &Bridge{
		config:            config,
		metrics:           m,
		emitter:           emitter,
		emitterBump:       emitterBump,
		mintAuthority:     mintAuthority,
		mintAuthorityBump: mintAuthorityBump,
	}, nil
}

// Bridge burns tokens announcing it to the remote network and mints tokens announced by remote networks.
type Bridge struct {
	config  Config
	metrics *metrics

	emitter           types.Address
	emitterBump       uint8
	mintAuthority     types.Address
	mintAuthorityBump uint8
}

// Emitter returns the identity signing outbound messages.
func (b *Bridge) Emitter() types.Address {
	return b.emitter
}

// MintAuthority returns the identity authorized to mint the bridged token.
func (b *Bridge) MintAuthority() types.Address {
	return b.mintAuthority
}

// Bootstrap creates the config owned by the governance identity and announces the bridge is alive.
func (b *Bridge) Bootstrap(ctx context.Context, owner types.Address, params BootstrapParams) (types.Config, error) {
	var config types.Config
	err := b.update(ctx, "bootstrap", func(tx *state.Tx) error {
		var err error
		config, err = tx.Bootstrap(owner, state.BootstrapParams{
			LocalNetworkID:    params.LocalNetworkID,
			TokenMint:         params.TokenMint,
			Transport:         b.config.Transport.Addresses(b.emitter),
			Surcharge:         params.Surcharge,
			SurchargeMode:     params.SurchargeMode,
			MintAuthorityBump: b.mintAuthorityBump,
			LocalEmitterBump:  b.emitterBump,
		})
		if err != nil {
			return err
		}

		_, err = b.publish(tx, config, owner, wire.Alive{OriginID: b.config.ProgramID}, 0, types.ZeroAddress)
		return err
	})
	if err != nil {
		return types.Config{}, err
	}

	b.metrics.published.Inc()
	logger.Get(ctx).Info("Bridge bootstrapped",
		zap.Stringer("owner", owner),
		zap.Uint16("localNetworkID", uint16(config.LocalNetworkID)),
		zap.Stringer("emitter", b.emitter))
	return config, nil
}

// RegisterEmitter registers the source trusted on the remote network.
func (b *Bridge) RegisterEmitter(
	ctx context.Context,
	requestedBy types.Address,
	networkID types.NetworkID,
	address types.Address,
) error {
	err := b.update(ctx, "register_emitter", func(tx *state.Tx) error {
		_, err := tx.RegisterEmitter(requestedBy, networkID, address)
		return err
	})
	if err != nil {
		return err
	}

	logger.Get(ctx).Info("Foreign emitter registered",
		zap.Uint16("networkID", uint16(networkID)),
		zap.Stringer("address", address))
	return nil
}

// SetPublicMint enables or disables minting from inbound messages.
func (b *Bridge) SetPublicMint(ctx context.Context, requestedBy types.Address, enabled bool) (types.Config, error) {
	var config types.Config
	err := b.update(ctx, "set_public_mint", func(tx *state.Tx) error {
		var err error
		config, err = tx.SetPublicMint(requestedBy, enabled)
		return err
	})
	if err != nil {
		return types.Config{}, err
	}

	logger.Get(ctx).Info("Public mint set", zap.Bool("enabled", enabled))
	return config, nil
}

// View returns the snapshot of the bridge state.
func (b *Bridge) View() *state.View {
	return b.config.Store.View()
}

func (b *Bridge) update(ctx context.Context, operation string, fn func(tx *state.Tx) error) error {
	err := b.config.Store.Update(fn)
	if err != nil {
		b.metrics.rejected.WithLabelValues(operation, reason(err)).Inc()
		logger.Get(ctx).Debug("Operation rejected", zap.String("operation", operation), zap.Error(err))
	}
	return err
}

func (b *Bridge) checkMint(v *state.View, config types.Config) error {
	decimals, err := b.config.Ledger.Decimals(v, config.TokenMint)
	if err != nil {
		return err
	}
	if decimals != TokenDecimals {
		return errors.Wrapf(types.ErrInvalidMintDecimals, "expected %d, got %d", TokenDecimals, decimals)
	}
	return nil
}

func (b *Bridge) publish(
	tx *state.Tx,
	config types.Config,
	payer types.Address,
	payload wire.Payload,
	amount uint64,
	recipient types.Address,
) (types.SentRecord, error) {
	localEmitter, err := tx.LocalEmitter()
	if err != nil {
		return types.SentRecord{}, err
	}
	emitter, err := derive.Identity(b.config.ProgramID, localEmitter.Bump, derive.SeedEmitter)
	if err != nil {
		return types.SentRecord{}, err
	}

	if fee := b.config.Transport.Fee(tx.View); fee > 0 {
		if err := b.config.Transport.PayFee(tx, payer, config.Transport.FeeCollector, fee); err != nil {
			return types.SentRecord{}, err
		}
	}

	nextSequence := b.config.Transport.NextSequence(tx.View, emitter)
	message, _, err := derive.Find(b.config.ProgramID, derive.SeedSent, helpers.SequenceSeed(nextSequence))
	if err != nil {
		return types.SentRecord{}, err
	}

	encoded, err := wire.Encode(payload)
	if err != nil {
		return types.SentRecord{}, err
	}
	sequence, err := b.config.Transport.Publish(tx, transport.PublishRequest{
		Emitter:  emitter,
		Message:  message,
		Payer:    payer,
		BatchID:  config.BatchID,
		Finality: config.Finality,
		Payload:  encoded,
	})
	if err != nil {
		return types.SentRecord{}, err
	}

	record := types.SentRecord{
		Sequence:  sequence,
		Message:   message,
		Sender:    payer,
		Amount:    amount,
		Recipient: recipient,
		Payload:   encoded,
	}
	if err := tx.RecordSent(record); err != nil {
		return types.SentRecord{}, err
	}
	return record, nil
}
