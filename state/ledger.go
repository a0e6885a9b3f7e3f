package state

import (
	"cmp"
	"slices"

	"github.com/pkg/errors"

	"github.com/outofforest/tokenbridge/helpers"
	"github.com/outofforest/tokenbridge/types"
	"github.com/outofforest/tokenbridge/wire"
)

// RecordOnce marks inbound message as applied. It fails with types.ErrDuplicateMessage if the message
// has been recorded before. Lookup and insert run inside the write transaction, which is the only one
// running at a time, so no other transaction can record the same message in between.
func (tx *Tx) RecordOnce(
	networkID types.NetworkID,
	sequence types.Sequence,
	batchID types.BatchID,
	payload []byte,
) (types.ReplayRecord, error) {
	if len(payload) > wire.MaxPayloadSize {
		return types.ReplayRecord{}, errors.Wrapf(types.ErrInvalidMessage, "payload size %d exceeds %d",
			len(payload), wire.MaxPayloadSize)
	}

	record := types.ReplayRecord{
		NetworkID: networkID,
		Sequence:  sequence,
		BatchID:   batchID,
		Payload:   append([]byte{}, payload...),
	}
	if !tx.insert(record) {
		return types.ReplayRecord{}, errors.Wrapf(types.ErrDuplicateMessage, "network %d, sequence %d",
			networkID, sequence)
	}
	return record, nil
}

// Received returns the record of applied inbound message.
func (v *View) Received(networkID types.NetworkID, sequence types.Sequence) (types.ReplayRecord, bool) {
	return Get[types.ReplayRecord](v, tableReceived, receivedKey(networkID, sequence))
}

// RecordSent stores the outbound message published for the sequence.
func (tx *Tx) RecordSent(record types.SentRecord) error {
	if !tx.insert(record) {
		return errors.Errorf("message with sequence %d has been already sent", record.Sequence)
	}
	return nil
}

// Sent returns the outbound message published for the sequence.
func (v *View) Sent(sequence types.Sequence) (types.SentRecord, bool) {
	return Get[types.SentRecord](v, tableSent, helpers.SequenceSeed(sequence))
}

// SentRecords returns all the outbound messages ordered by sequence.
func (v *View) SentRecords() []types.SentRecord {
	records := slices.Collect(All[types.SentRecord](v, tableSent))
	slices.SortFunc(records, func(a, b types.SentRecord) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	return records
}
