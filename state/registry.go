package state

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/outofforest/tokenbridge/types"
)

// RegisterEmitter registers the only source trusted on the remote network.
// Registration for the network already registered replaces the previous source.
func (tx *Tx) RegisterEmitter(
	requestedBy types.Address,
	networkID types.NetworkID,
	address types.Address,
) (types.EmitterRecord, error) {
	config, err := tx.owned(requestedBy)
	if err != nil {
		return types.EmitterRecord{}, err
	}

	switch {
	case networkID == 0:
		return types.EmitterRecord{}, errors.Wrap(types.ErrInvalidForeignEmitter, "network ID must not be zero")
	case networkID == config.LocalNetworkID:
		return types.EmitterRecord{}, errors.Wrapf(types.ErrInvalidForeignEmitter,
			"network ID %d is the local one", networkID)
	case address.IsZero():
		return types.EmitterRecord{}, errors.Wrap(types.ErrInvalidForeignEmitter, "address must not be zero")
	}

	record := types.EmitterRecord{
		NetworkID: networkID,
		Address:   address,
	}
	tx.set(record)
	return record, nil
}

// Emitter returns the source registered for the network.
func (v *View) Emitter(networkID types.NetworkID) (types.EmitterRecord, bool) {
	return Get[types.EmitterRecord](v, tableEmitter, emitterKey(networkID))
}

// VerifyEmitter returns true if candidate is the source registered for the network.
func (v *View) VerifyEmitter(networkID types.NetworkID, candidate types.Address) bool {
	record, exists := v.Emitter(networkID)
	return exists && record.Address == candidate
}

// Emitters returns all the registered sources ordered by network ID.
func (v *View) Emitters() []types.EmitterRecord {
	var records []types.EmitterRecord
	for r := range All[types.EmitterRecord](v, tableEmitter) {
		records = append(records, r)
	}
	slices.SortFunc(records, func(a, b types.EmitterRecord) int {
		return int(a.NetworkID) - int(b.NetworkID)
	})
	return records
}
