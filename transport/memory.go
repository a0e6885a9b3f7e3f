package transport

import (
	"cmp"
	"slices"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/outofforest/tokenbridge/derive"
	"github.com/outofforest/tokenbridge/state"
	"github.com/outofforest/tokenbridge/types"
)

const (
	tablePosted    = "transport_posted"
	tablePublished = "transport_published"
	tableSequence  = "transport_sequence"
	tableNative    = "transport_native"
	tableFee       = "transport_fee"
)

var (
	// ErrMessageNotFound means that no verified message exists for the hash.
	ErrMessageNotFound = errors.New("verified message not found")

	// ErrFeeNotPaid means that fee collector hasn't received the fee before publishing.
	ErrFeeNotPaid = errors.New("fee not paid")

	// ErrInsufficientFunds means that payer can't cover the fee.
	ErrInsufficientFunds = errors.New("insufficient funds")

	feeKey = []byte{0x00}

	seedBridge       = []byte("Bridge")
	seedFeeCollector = []byte("fee_collector")
	seedSequence     = []byte("Sequence")
)

type feeState struct {
	Fee       uint64
	Collected uint64
}

// Tables returns the tables used by the memory transport.
func Tables() []*memdb.TableSchema {
	return []*memdb.TableSchema{
		state.Table(tablePosted),
		state.Table(tablePublished),
		state.Table(tableSequence),
		state.Table(tableNative),
		state.Table(tableFee),
	}
}

// NewMemory creates transport keeping its state in the bridge store.
func NewMemory(programID types.Address) *Memory {
	bridge, _ := derive.MustFind(programID, seedBridge)
	feeCollector, _ := derive.MustFind(programID, seedFeeCollector)
	return &Memory{
		programID:    programID,
		bridge:       bridge,
		feeCollector: feeCollector,
	}
}

// Memory is the transport delivering messages within the process.
type Memory struct {
	programID    types.Address
	bridge       types.Address
	feeCollector types.Address
}

// Addresses returns the addresses of transport accounts used by the emitter.
func (m *Memory) Addresses(emitter types.Address) types.TransportAddresses {
	sequence, _ := derive.MustFind(m.programID, seedSequence, emitter[:])
	return types.TransportAddresses{
		Bridge:       m.bridge,
		FeeCollector: m.feeCollector,
		Sequence:     sequence,
	}
}

// Post stores message as verified.
func (m *Memory) Post(tx *state.Tx, msg VerifiedMessage) Hash {
	h := msg.Hash()
	tx.Set(tablePosted, h[:], msg)
	return h
}

// Message returns verified message.
func (m *Memory) Message(v *state.View, hash Hash) (VerifiedMessage, error) {
	msg, exists := state.Get[VerifiedMessage](v, tablePosted, hash[:])
	if !exists {
		return VerifiedMessage{}, errors.Wrapf(ErrMessageNotFound, "hash %s", hash)
	}
	return msg, nil
}

// SetFee sets the fee charged for publishing.
func (m *Memory) SetFee(tx *state.Tx, fee uint64) {
	fs := m.feeState(tx.View)
	fs.Fee = fee
	tx.Set(tableFee, feeKey, fs)
}

// Fee returns the fee charged for publishing.
func (m *Memory) Fee(v *state.View) uint64 {
	return m.feeState(v).Fee
}

// Deposit adds native funds to the account.
func (m *Memory) Deposit(tx *state.Tx, account types.Address, amount uint64) {
	tx.Set(tableNative, account[:], m.NativeBalance(tx.View, account)+amount)
}

// NativeBalance returns the native funds of the account.
func (m *Memory) NativeBalance(v *state.View, account types.Address) uint64 {
	balance, _ := state.Get[uint64](v, tableNative, account[:])
	return balance
}

// PayFee transfers fee from the payer to the fee collector.
func (m *Memory) PayFee(tx *state.Tx, payer, collector types.Address, amount uint64) error {
	if collector != m.feeCollector {
		return errors.Errorf("%s is not the fee collector", collector)
	}
	balance := m.NativeBalance(tx.View, payer)
	if balance < amount {
		return errors.Wrapf(ErrInsufficientFunds, "balance %d, fee %d", balance, amount)
	}
	tx.Set(tableNative, payer[:], balance-amount)
	m.Deposit(tx, collector, amount)
	return nil
}

// NextSequence returns the sequence assigned to the next message published by the emitter.
func (m *Memory) NextSequence(v *state.View, emitter types.Address) types.Sequence {
	sequence, _ := state.Get[types.Sequence](v, tableSequence, emitter[:])
	return sequence
}

// Publish accepts outbound message. Fee must be transferred to the fee collector before.
func (m *Memory) Publish(tx *state.Tx, req PublishRequest) (types.Sequence, error) {
	fs := m.feeState(tx.View)
	collected := m.NativeBalance(tx.View, m.feeCollector)
	if collected < fs.Collected+fs.Fee {
		return 0, errors.Wrapf(ErrFeeNotPaid, "fee %d", fs.Fee)
	}
	fs.Collected = collected
	tx.Set(tableFee, feeKey, fs)

	sequence := m.NextSequence(tx.View, req.Emitter)
	msg := PublishedMessage{
		Sequence: sequence,
		Emitter:  req.Emitter,
		Message:  req.Message,
		BatchID:  req.BatchID,
		Finality: req.Finality,
		Payload:  append([]byte{}, req.Payload...),
	}
	if !tx.Insert(tablePublished, req.Message[:], msg) {
		return 0, errors.Errorf("message account %s is already used", req.Message)
	}
	tx.Set(tableSequence, req.Emitter[:], sequence+1)
	return sequence, nil
}

// Republish restores the message published before the transport state was lost.
// Sequence of the emitter is moved past the message.
func (m *Memory) Republish(tx *state.Tx, msg PublishedMessage) error {
	if !tx.Insert(tablePublished, msg.Message[:], msg) {
		return errors.Errorf("message account %s is already used", msg.Message)
	}
	if m.NextSequence(tx.View, msg.Emitter) <= msg.Sequence {
		tx.Set(tableSequence, msg.Emitter[:], msg.Sequence+1)
	}
	return nil
}

// Published returns the message published into the message account.
func (m *Memory) Published(v *state.View, message types.Address) (PublishedMessage, bool) {
	return state.Get[PublishedMessage](v, tablePublished, message[:])
}

// PublishedBy returns all the messages published by the emitter ordered by sequence.
func (m *Memory) PublishedBy(v *state.View, emitter types.Address) []PublishedMessage {
	var all []PublishedMessage
	for msg := range state.All[PublishedMessage](v, tablePublished) {
		all = append(all, msg)
	}
	messages := lo.Filter(all, func(msg PublishedMessage, _ int) bool {
		return msg.Emitter == emitter
	})
	slices.SortFunc(messages, func(a, b PublishedMessage) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	return messages
}

func (m *Memory) feeState(v *state.View) feeState {
	fs, _ := state.Get[feeState](v, tableFee, feeKey)
	return fs
}
