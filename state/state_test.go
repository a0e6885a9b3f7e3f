package state

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/parallel"
	"github.com/outofforest/qa"
	"github.com/outofforest/tokenbridge/types"
)

var (
	owner    = types.Address{0x01}
	stranger = types.Address{0x02}
	emitter2 = types.Address{0xe2}
	emitter3 = types.Address{0xe3}

	params = BootstrapParams{
		LocalNetworkID: 1,
		TokenMint:      types.Address{0x0a},
		Transport: types.TransportAddresses{
			Bridge:       types.Address{0xb1},
			FeeCollector: types.Address{0xb2},
			Sequence:     types.Address{0xb3},
		},
		Surcharge:         100,
		MintAuthorityBump: 254,
		LocalEmitterBump:  253,
	}
)

type sink struct {
	entities []any
	err      error
}

func (s *sink) Append(entities ...any) error {
	if s.err != nil {
		return s.err
	}
	s.entities = append(s.entities, entities...)
	return nil
}

func newStore(t *testing.T, s Sink) *Store {
	store, err := New(s)
	require.NoError(t, err)
	return store
}

func bootstrap(t *testing.T, store *Store) {
	require.NoError(t, store.Update(func(tx *Tx) error {
		_, err := tx.Bootstrap(owner, params)
		return err
	}))
}

func TestBootstrap(t *testing.T) {
	requireT := require.New(t)
	store := newStore(t, nil)

	_, err := store.View().Config()
	requireT.ErrorIs(err, types.ErrNotBootstrapped)

	bootstrap(t, store)

	config, err := store.View().Config()
	requireT.NoError(err)
	requireT.Equal(types.Config{
		Owner:             owner,
		Transport:         params.Transport,
		PublicMint:        false,
		BatchID:           0,
		Finality:          types.FinalityConfirmed,
		LocalNetworkID:    1,
		TokenMint:         params.TokenMint,
		Surcharge:         100,
		SurchargeMode:     types.SurchargeBoth,
		MintAuthorityBump: 254,
	}, config)

	localEmitter, err := store.View().LocalEmitter()
	requireT.NoError(err)
	requireT.Equal(types.LocalEmitter{Bump: 253}, localEmitter)

	err = store.Update(func(tx *Tx) error {
		_, err := tx.Bootstrap(stranger, params)
		return err
	})
	requireT.ErrorIs(err, types.ErrAlreadyBootstrapped)

	config, err = store.View().Config()
	requireT.NoError(err)
	requireT.Equal(owner, config.Owner)
}

func TestBootstrapInvalidParams(t *testing.T) {
	requireT := require.New(t)
	store := newStore(t, nil)

	requireT.Error(store.Update(func(tx *Tx) error {
		_, err := tx.Bootstrap(types.ZeroAddress, params)
		return err
	}))

	p := params
	p.LocalNetworkID = 0
	requireT.Error(store.Update(func(tx *Tx) error {
		_, err := tx.Bootstrap(owner, p)
		return err
	}))

	p = params
	p.SurchargeMode = types.SurchargeNone + 1
	requireT.Error(store.Update(func(tx *Tx) error {
		_, err := tx.Bootstrap(owner, p)
		return err
	}))

	_, err := store.View().Config()
	requireT.ErrorIs(err, types.ErrNotBootstrapped)
}

func TestSetPublicMint(t *testing.T) {
	requireT := require.New(t)
	store := newStore(t, nil)

	err := store.Update(func(tx *Tx) error {
		_, err := tx.SetPublicMint(owner, true)
		return err
	})
	requireT.ErrorIs(err, types.ErrNotBootstrapped)

	bootstrap(t, store)

	err = store.Update(func(tx *Tx) error {
		_, err := tx.SetPublicMint(stranger, true)
		return err
	})
	requireT.ErrorIs(err, types.ErrOwnerOnly)

	config, err := store.View().Config()
	requireT.NoError(err)
	requireT.False(config.PublicMint)

	requireT.NoError(store.Update(func(tx *Tx) error {
		config, err := tx.SetPublicMint(owner, true)
		requireT.True(config.PublicMint)
		return err
	}))

	config, err = store.View().Config()
	requireT.NoError(err)
	requireT.True(config.PublicMint)

	requireT.NoError(store.Update(func(tx *Tx) error {
		_, err := tx.SetPublicMint(owner, false)
		return err
	}))

	config, err = store.View().Config()
	requireT.NoError(err)
	requireT.False(config.PublicMint)
}

func TestRegisterEmitter(t *testing.T) {
	requireT := require.New(t)
	store := newStore(t, nil)
	bootstrap(t, store)

	register := func(requestedBy types.Address, networkID types.NetworkID, address types.Address) error {
		return store.Update(func(tx *Tx) error {
			_, err := tx.RegisterEmitter(requestedBy, networkID, address)
			return err
		})
	}

	requireT.ErrorIs(register(stranger, 2, emitter2), types.ErrOwnerOnly)
	requireT.ErrorIs(register(owner, 0, emitter2), types.ErrInvalidForeignEmitter)
	requireT.ErrorIs(register(owner, 1, emitter2), types.ErrInvalidForeignEmitter)
	requireT.ErrorIs(register(owner, 2, types.ZeroAddress), types.ErrInvalidForeignEmitter)
	requireT.Empty(store.View().Emitters())
	requireT.False(store.View().VerifyEmitter(2, emitter2))

	requireT.NoError(register(owner, 3, emitter3))
	requireT.NoError(register(owner, 2, emitter3))
	requireT.NoError(register(owner, 2, emitter2))

	view := store.View()
	requireT.True(view.VerifyEmitter(2, emitter2))
	requireT.False(view.VerifyEmitter(2, emitter3))
	requireT.True(view.VerifyEmitter(3, emitter3))
	requireT.False(view.VerifyEmitter(4, emitter3))

	almost := emitter2
	almost[31] = 0x01
	requireT.False(view.VerifyEmitter(2, almost))

	requireT.Equal([]types.EmitterRecord{
		{NetworkID: 2, Address: emitter2},
		{NetworkID: 3, Address: emitter3},
	}, view.Emitters())

	requireT.ErrorIs(register(stranger, 2, emitter3), types.ErrOwnerOnly)
	requireT.True(store.View().VerifyEmitter(2, emitter2))
}

func TestRecordOnce(t *testing.T) {
	requireT := require.New(t)
	store := newStore(t, nil)

	requireT.NoError(store.Update(func(tx *Tx) error {
		_, err := tx.RecordOnce(2, 1, 7, []byte{0x01, 0x02})
		return err
	}))

	record, exists := store.View().Received(2, 1)
	requireT.True(exists)
	requireT.Equal(types.ReplayRecord{
		NetworkID: 2,
		Sequence:  1,
		BatchID:   7,
		Payload:   []byte{0x01, 0x02},
	}, record)

	err := store.Update(func(tx *Tx) error {
		_, err := tx.RecordOnce(2, 1, 8, []byte{0x03})
		return err
	})
	requireT.ErrorIs(err, types.ErrDuplicateMessage)

	record, _ = store.View().Received(2, 1)
	requireT.EqualValues(7, record.BatchID)

	requireT.NoError(store.Update(func(tx *Tx) error {
		if _, err := tx.RecordOnce(3, 1, 0, nil); err != nil {
			return err
		}
		_, err := tx.RecordOnce(2, 2, 0, nil)
		return err
	}))

	_, exists = store.View().Received(3, 2)
	requireT.False(exists)

	err = store.Update(func(tx *Tx) error {
		_, err := tx.RecordOnce(4, 1, 0, make([]byte, 1025))
		return err
	})
	requireT.ErrorIs(err, types.ErrInvalidMessage)
}

func TestAbortedTransactionLeavesNoRecord(t *testing.T) {
	requireT := require.New(t)
	s := &sink{}
	store := newStore(t, s)

	errTest := errors.New("test")
	err := store.Update(func(tx *Tx) error {
		if _, err := tx.RecordOnce(2, 1, 0, nil); err != nil {
			return err
		}
		return errTest
	})
	requireT.ErrorIs(err, errTest)

	_, exists := store.View().Received(2, 1)
	requireT.False(exists)
	requireT.Empty(s.entities)

	requireT.NoError(store.Update(func(tx *Tx) error {
		_, err := tx.RecordOnce(2, 1, 0, nil)
		return err
	}))
}

func TestSink(t *testing.T) {
	requireT := require.New(t)
	s := &sink{}
	store := newStore(t, s)
	bootstrap(t, store)

	requireT.NoError(store.Update(func(tx *Tx) error {
		if _, err := tx.RegisterEmitter(owner, 2, emitter2); err != nil {
			return err
		}
		_, err := tx.RecordOnce(2, 5, 0, []byte{0x01})
		return err
	}))

	config, err := store.View().Config()
	requireT.NoError(err)

	requireT.Equal([]any{
		config,
		types.LocalEmitter{Bump: 253},
		types.EmitterRecord{NetworkID: 2, Address: emitter2},
		types.ReplayRecord{NetworkID: 2, Sequence: 5, Payload: []byte{0x01}},
	}, s.entities)

	s.err = errors.New("disk failure")
	err = store.Update(func(tx *Tx) error {
		_, err := tx.SetPublicMint(owner, true)
		return err
	})
	requireT.ErrorIs(err, s.err)

	config, err = store.View().Config()
	requireT.NoError(err)
	requireT.False(config.PublicMint)
}

func TestRestore(t *testing.T) {
	requireT := require.New(t)
	s := &sink{}
	store := newStore(t, s)
	bootstrap(t, store)

	requireT.NoError(store.Update(func(tx *Tx) error {
		if _, err := tx.SetPublicMint(owner, true); err != nil {
			return err
		}
		if _, err := tx.RegisterEmitter(owner, 2, emitter2); err != nil {
			return err
		}
		if _, err := tx.RecordOnce(2, 1, 0, []byte{0x01}); err != nil {
			return err
		}
		return tx.RecordSent(types.SentRecord{Sequence: 3, Amount: 10})
	}))

	restored := newStore(t, nil)
	requireT.NoError(restored.Restore(s.entities...))

	view := restored.View()
	config, err := view.Config()
	requireT.NoError(err)
	requireT.True(config.PublicMint)
	requireT.True(view.VerifyEmitter(2, emitter2))
	_, exists := view.Received(2, 1)
	requireT.True(exists)
	sent, exists := view.Sent(3)
	requireT.True(exists)
	requireT.EqualValues(10, sent.Amount)

	err = restored.Update(func(tx *Tx) error {
		_, err := tx.RecordOnce(2, 1, 0, nil)
		return err
	})
	requireT.ErrorIs(err, types.ErrDuplicateMessage)

	requireT.Error(restored.Restore("unknown"))
}

func TestRecordSent(t *testing.T) {
	requireT := require.New(t)
	store := newStore(t, nil)

	requireT.NoError(store.Update(func(tx *Tx) error {
		return tx.RecordSent(types.SentRecord{Sequence: 1})
	}))
	requireT.Error(store.Update(func(tx *Tx) error {
		return tx.RecordSent(types.SentRecord{Sequence: 1})
	}))
	_, exists := store.View().Sent(2)
	requireT.False(exists)
}

func TestSentRecordsOrdered(t *testing.T) {
	requireT := require.New(t)
	store := newStore(t, nil)

	requireT.NoError(store.Update(func(tx *Tx) error {
		for _, sequence := range []types.Sequence{256, 1, 2} {
			if err := tx.RecordSent(types.SentRecord{Sequence: sequence}); err != nil {
				return err
			}
		}
		return nil
	}))

	requireT.Equal([]types.SentRecord{{Sequence: 1}, {Sequence: 2}, {Sequence: 256}}, store.View().SentRecords())
}

func TestConcurrentRecordOnce(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)
	store := newStore(t, nil)

	const attempts = 50
	var succeeded, duplicated atomic.Int64
	err := parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		for range attempts {
			spawn("record", parallel.Continue, func(ctx context.Context) error {
				err := store.Update(func(tx *Tx) error {
					_, err := tx.RecordOnce(2, 1, 0, nil)
					return err
				})
				switch {
				case err == nil:
					succeeded.Add(1)
				case errors.Is(err, types.ErrDuplicateMessage):
					duplicated.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		return nil
	})
	requireT.NoError(err)
	requireT.EqualValues(1, succeeded.Load())
	requireT.EqualValues(attempts-1, duplicated.Load())
}
