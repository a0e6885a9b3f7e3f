package bridge

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/tokenbridge/derive"
	"github.com/outofforest/tokenbridge/state"
	"github.com/outofforest/tokenbridge/transport"
	"github.com/outofforest/tokenbridge/types"
	"github.com/outofforest/tokenbridge/wire"
)

// ReceiveAndMint mints tokens announced by the verified message to the caller.
//
// The message is recorded as applied before tokens are minted, all in one transaction.
// If anything fails, neither the record nor the tokens exist afterwards.
func (b *Bridge) ReceiveAndMint(ctx context.Context, caller types.Address, hash transport.Hash) (Minted, error) {
	var minted Minted
	err := b.update(ctx, "receive_and_mint", func(tx *state.Tx) error {
		config, err := tx.Config()
		if err != nil {
			return err
		}
		if !config.PublicMint {
			return errors.WithStack(types.ErrPublicMintDisabled)
		}

		msg, err := b.config.Transport.Message(tx.View, hash)
		if err != nil {
			return errors.Wrapf(types.ErrInvalidMessage, "%s", err)
		}

		amount, err := helloAmount(msg.Payload)
		if err != nil {
			return err
		}

		if !tx.VerifyEmitter(msg.SourceNetworkID, msg.SourceAddress) {
			return errors.Wrapf(types.ErrInvalidForeignEmitter, "network %d, address %s",
				msg.SourceNetworkID, msg.SourceAddress)
		}

		if _, err := tx.RecordOnce(msg.SourceNetworkID, msg.Sequence, msg.BatchID, msg.Payload); err != nil {
			return err
		}

		var surcharge uint64
		if config.SurchargeMode.Inbound() {
			surcharge = config.Surcharge
		}
		if amount <= surcharge {
			return errors.Wrapf(types.ErrAmountTooSmall, "amount %d, surcharge %d", amount, surcharge)
		}
		if err := b.checkMint(tx.View, config); err != nil {
			return err
		}

		mintAuthority, err := derive.Identity(b.config.ProgramID, config.MintAuthorityBump, derive.SeedMintAuthority)
		if err != nil {
			return err
		}
		if err := b.config.Ledger.Mint(tx, config.TokenMint, caller, mintAuthority, amount-surcharge); err != nil {
			return err
		}

		minted = Minted{
			NetworkID: msg.SourceNetworkID,
			Sequence:  msg.Sequence,
			Recipient: caller,
			Amount:    amount - surcharge,
			Surcharge: surcharge,
		}
		return nil
	})
	if err != nil {
		return Minted{}, err
	}

	b.metrics.minted.Add(float64(minted.Amount))
	b.metrics.surcharge.WithLabelValues(legInbound).Add(float64(minted.Surcharge))

	logger.Get(ctx).Info("Tokens minted",
		zap.Stringer("recipient", caller),
		zap.Uint16("networkID", uint16(minted.NetworkID)),
		zap.Uint64("sequence", uint64(minted.Sequence)),
		zap.Uint64("amount", minted.Amount),
		zap.Uint64("surcharge", minted.Surcharge))
	return minted, nil
}

func helloAmount(payload []byte) (uint64, error) {
	p, err := wire.Decode(payload)
	if err != nil {
		return 0, err
	}
	hello, ok := p.(wire.Hello)
	if !ok {
		return 0, errors.Wrapf(types.ErrInvalidMessage, "unexpected payload with tag %d", p.Tag())
	}
	return hello.Amount()
}
