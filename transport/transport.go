package transport

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	"github.com/outofforest/tokenbridge/types"
)

// Hash identifies verified message.
type Hash [32]byte

// String returns hex representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// VerifiedMessage is the message whose origin has been verified by the transport.
type VerifiedMessage struct {
	Timestamp       uint32
	SourceNetworkID types.NetworkID
	SourceAddress   types.Address
	Sequence        types.Sequence
	BatchID         types.BatchID
	Finality        types.Finality
	Payload         []byte
}

// Body returns the signed body of the message.
func (m VerifiedMessage) Body() []byte {
	buf := make([]byte, 0, 4+4+2+types.AddressLength+8+1+len(m.Payload))
	buf = binary.BigEndian.AppendUint32(buf, m.Timestamp)
	buf = binary.BigEndian.AppendUint32(buf, uint32(m.BatchID))
	buf = binary.BigEndian.AppendUint16(buf, uint16(m.SourceNetworkID))
	buf = append(buf, m.SourceAddress[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(m.Sequence))
	buf = append(buf, byte(m.Finality))
	return append(buf, m.Payload...)
}

// Hash computes the hash of the message body.
func (m VerifiedMessage) Hash() Hash {
	return keccak(m.Body())
}

func keccak(data []byte) Hash {
	var h Hash
	k := sha3.NewLegacyKeccak256()
	k.Write(data)
	k.Sum(h[:0])
	return h
}

// PublishRequest is the request to publish outbound message.
type PublishRequest struct {
	Emitter  types.Address
	Message  types.Address
	Payer    types.Address
	BatchID  types.BatchID
	Finality types.Finality
	Payload  []byte
}

// PublishedMessage is the outbound message accepted by the transport.
type PublishedMessage struct {
	Sequence types.Sequence
	Emitter  types.Address
	Message  types.Address
	BatchID  types.BatchID
	Finality types.Finality
	Payload  []byte
}
