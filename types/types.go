package types

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// AddressLength is the length of an identity on any network handled by the bridge.
const AddressLength = 32

type (
	// NetworkID identifies a network (chain) connected to the bridge.
	NetworkID uint16

	// Sequence is the per-emitter counter of published messages.
	Sequence uint64

	// BatchID groups messages published together.
	BatchID uint32

	// Address is the identity of an account, program or emitter.
	Address [AddressLength]byte
)

// ZeroAddress represents an uninitialized address.
var ZeroAddress Address

// IsZero returns true if all bytes of the address are zero.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// String returns hex representation of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// UnmarshalText parses hex representation of the address, optionally prefixed with 0x.
func (a *Address) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(string(text), "0x")
	if hex.DecodedLen(len(s)) != AddressLength {
		return errors.Errorf("address must be %d bytes long", AddressLength)
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Finality is the consistency level requested from the transport when publishing.
type Finality uint8

const (
	// FinalityConfirmed means the message is observed once the transaction is confirmed.
	FinalityConfirmed Finality = iota
	// FinalityFinalized means the message is observed once the transaction is finalized.
	FinalityFinalized
)

// SurchargeMode defines which leg of the transfer pays the surcharge.
type SurchargeMode uint8

const (
	// SurchargeBoth deducts the surcharge on burn and again on mint.
	SurchargeBoth SurchargeMode = iota
	// SurchargeOutbound deducts the surcharge on burn only.
	SurchargeOutbound
	// SurchargeInbound deducts the surcharge on mint only.
	SurchargeInbound
	// SurchargeNone disables the surcharge.
	SurchargeNone
)

var surchargeModes = []string{
	SurchargeBoth:     "both",
	SurchargeOutbound: "outbound",
	SurchargeInbound:  "inbound",
	SurchargeNone:     "none",
}

// Valid returns true if mode is one of the known ones.
func (m SurchargeMode) Valid() bool {
	return int(m) < len(surchargeModes)
}

func (m SurchargeMode) String() string {
	if !m.Valid() {
		return "unknown"
	}
	return surchargeModes[m]
}

// UnmarshalText parses the name of the mode.
func (m *SurchargeMode) UnmarshalText(text []byte) error {
	for i, name := range surchargeModes {
		if name == string(text) {
			*m = SurchargeMode(i)
			return nil
		}
	}
	return errors.Errorf("unknown surcharge mode %q", text)
}

// Outbound returns true if the surcharge is burned together with the transferred amount.
func (m SurchargeMode) Outbound() bool {
	return m == SurchargeBoth || m == SurchargeOutbound
}

// Inbound returns true if the surcharge is deducted from the minted amount.
func (m SurchargeMode) Inbound() bool {
	return m == SurchargeBoth || m == SurchargeInbound
}

// TransportAddresses stores the addresses of transport accounts used when publishing.
type TransportAddresses struct {
	Bridge       Address
	FeeCollector Address
	Sequence     Address
}

// Config is the governance record of the bridge.
type Config struct {
	Owner             Address
	Transport         TransportAddresses
	PublicMint        bool
	BatchID           BatchID
	Finality          Finality
	LocalNetworkID    NetworkID
	TokenMint         Address
	Surcharge         uint64
	SurchargeMode     SurchargeMode
	MintAuthorityBump uint8
}

// LocalEmitter stores the derivation bump of the bridge's own outbound identity.
type LocalEmitter struct {
	Bump uint8
}

// EmitterRecord binds remote network to the only source trusted on it.
type EmitterRecord struct {
	NetworkID NetworkID
	Address   Address
}

// ReplayRecord marks inbound message as applied.
type ReplayRecord struct {
	NetworkID NetworkID
	Sequence  Sequence
	BatchID   BatchID
	Payload   []byte
}

// SentRecord stores the outbound message published for a sequence.
type SentRecord struct {
	Sequence  Sequence
	Message   Address
	Sender    Address
	Amount    uint64
	Recipient Address
	Payload   []byte
}
