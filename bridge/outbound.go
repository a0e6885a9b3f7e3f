package bridge

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/tokenbridge/helpers"
	"github.com/outofforest/tokenbridge/state"
	"github.com/outofforest/tokenbridge/types"
	"github.com/outofforest/tokenbridge/wire"
)

// BurnAndNotify burns caller's tokens and publishes the notice for the recipient on the remote network.
// Recipient shorter than 32 bytes is right-aligned.
func (b *Bridge) BurnAndNotify(
	ctx context.Context,
	caller types.Address,
	amount uint64,
	recipient []byte,
) (types.SentRecord, error) {
	var record types.SentRecord
	var burned, surcharge uint64
	err := b.update(ctx, "burn_and_notify", func(tx *state.Tx) error {
		if amount == 0 {
			return errors.Wrap(types.ErrInvalidAmount, "amount must not be zero")
		}

		config, err := tx.Config()
		if err != nil {
			return err
		}

		recipientAddress, err := helpers.Recipient(recipient)
		if err != nil {
			return err
		}

		if b.config.Transport.Addresses(b.emitter) != config.Transport {
			return errors.WithStack(types.ErrInvalidTransportConfig)
		}
		if err := b.checkMint(tx.View, config); err != nil {
			return err
		}

		if config.SurchargeMode.Outbound() {
			surcharge = config.Surcharge
		}
		burned = amount + surcharge
		if burned < amount {
			return errors.Wrapf(types.ErrInvalidAmount, "amount %d with surcharge %d overflows", amount, surcharge)
		}

		if err := b.config.Ledger.Burn(tx, config.TokenMint, caller, caller, burned); err != nil {
			return err
		}

		record, err = b.publish(tx, config, caller, wire.BurnNotice{
			Amount:    amount,
			Recipient: recipientAddress,
		}, amount, recipientAddress)
		return err
	})
	if err != nil {
		return types.SentRecord{}, err
	}

	b.metrics.published.Inc()
	b.metrics.burned.Add(float64(burned))
	b.metrics.surcharge.WithLabelValues(legOutbound).Add(float64(surcharge))

	logger.Get(ctx).Info("Tokens burned",
		zap.Stringer("caller", caller),
		zap.Uint64("amount", amount),
		zap.Uint64("surcharge", surcharge),
		zap.Stringer("recipient", record.Recipient),
		zap.Uint64("sequence", uint64(record.Sequence)))
	return record, nil
}
