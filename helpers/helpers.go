package helpers

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/outofforest/tokenbridge/types"
)

// Recipient right-aligns native address of the destination network in 32 bytes.
func Recipient(address []byte) (types.Address, error) {
	if len(address) == 0 || len(address) > types.AddressLength {
		return types.ZeroAddress, errors.Wrapf(types.ErrInvalidRecipient, "address length %d", len(address))
	}
	return types.Address(common.LeftPadBytes(address, types.AddressLength)), nil
}

// EVMRecipient parses hex EVM address and pads it to 32 bytes.
func EVMRecipient(hexAddress string) (types.Address, error) {
	if !common.IsHexAddress(hexAddress) {
		return types.ZeroAddress, errors.Wrapf(types.ErrInvalidRecipient, "%q is not an EVM address", hexAddress)
	}
	return Recipient(common.HexToAddress(hexAddress).Bytes())
}

// NetworkSeed encodes network ID the way it is used in derivation seeds and keys.
func NetworkSeed(networkID types.NetworkID) []byte {
	return binary.LittleEndian.AppendUint16(nil, uint16(networkID))
}

// SequenceSeed encodes sequence the way it is used in derivation seeds and keys.
func SequenceSeed(sequence types.Sequence) []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(sequence))
}
