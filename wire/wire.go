package wire

import (
	"encoding/binary"
	"strconv"

	"github.com/pkg/errors"

	"github.com/outofforest/tokenbridge/types"
)

const (
	// MaxPayloadSize is the maximum size of encoded payload accepted by the bridge.
	MaxPayloadSize = 1024

	// MaxHelloLength is the maximum length of amount text carried by Hello payload.
	MaxHelloLength = MaxPayloadSize - helloHeaderSize

	helloHeaderSize = 1 + 4
	aliveSize       = 1 + types.AddressLength
	burnNoticeSize  = 1 + 8 + types.AddressLength
)

// Tag is the discriminant of payload variant.
type Tag uint8

const (
	// TagAlive is the tag of Alive payload.
	TagAlive Tag = iota
	// TagHello is the tag of Hello payload.
	TagHello
	// TagBurnNotice is the tag of BurnNotice payload.
	TagBurnNotice
)

// Payload is the application-level message exchanged through the transport.
type Payload interface {
	Tag() Tag
	size() int
	put(buf []byte)
}

// Alive is published once, when the bridge is bootstrapped.
type Alive struct {
	OriginID types.Address
}

// Tag returns tag of the variant.
func (p Alive) Tag() Tag {
	return TagAlive
}

func (p Alive) size() int {
	return aliveSize
}

func (p Alive) put(buf []byte) {
	copy(buf, p.OriginID[:])
}

// Hello carries decimal representation of the amount to mint.
type Hello struct {
	AmountText []byte
}

// NewHello returns Hello payload for amount.
func NewHello(amount uint64) Hello {
	return Hello{AmountText: strconv.AppendUint(nil, amount, 10)}
}

// Tag returns tag of the variant.
func (p Hello) Tag() Tag {
	return TagHello
}

// Amount parses the amount text.
func (p Hello) Amount() (uint64, error) {
	for _, c := range p.AmountText {
		if c < '0' || c > '9' {
			return 0, errors.Wrapf(types.ErrInvalidMessage, "amount %q is not a decimal integer", p.AmountText)
		}
	}
	amount, err := strconv.ParseUint(string(p.AmountText), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(types.ErrInvalidMessage, "amount %q: %s", p.AmountText, err)
	}
	return amount, nil
}

func (p Hello) size() int {
	return helloHeaderSize + len(p.AmountText)
}

func (p Hello) put(buf []byte) {
	binary.LittleEndian.PutUint32(buf, uint32(len(p.AmountText)))
	copy(buf[4:], p.AmountText)
}

// BurnNotice announces tokens burned for the recipient on the remote network.
type BurnNotice struct {
	Amount    uint64
	Recipient types.Address
}

// Tag returns tag of the variant.
func (p BurnNotice) Tag() Tag {
	return TagBurnNotice
}

func (p BurnNotice) size() int {
	return burnNoticeSize
}

func (p BurnNotice) put(buf []byte) {
	binary.LittleEndian.PutUint64(buf, p.Amount)
	copy(buf[8:], p.Recipient[:])
}

// Encode encodes payload. It fails with types.ErrInvalidMessage if the result would exceed MaxPayloadSize.
func Encode(p Payload) ([]byte, error) {
	if size := p.size(); size > MaxPayloadSize {
		return nil, errors.Wrapf(types.ErrInvalidMessage, "payload size %d exceeds %d", size, MaxPayloadSize)
	}
	buf := make([]byte, p.size())
	buf[0] = byte(p.Tag())
	p.put(buf[1:])
	return buf, nil
}

// MustEncode encodes payload and panics if it is invalid.
func MustEncode(p Payload) []byte {
	buf, err := Encode(p)
	if err != nil {
		panic(err)
	}
	return buf
}

// Decode decodes payload.
func Decode(buf []byte) (Payload, error) {
	if len(buf) == 0 {
		return nil, errors.Wrap(types.ErrInvalidMessage, "empty payload")
	}
	if len(buf) > MaxPayloadSize {
		return nil, errors.Wrapf(types.ErrInvalidMessage, "payload size %d exceeds %d", len(buf), MaxPayloadSize)
	}

	tag := Tag(buf[0])
	body := buf[1:]
	switch tag {
	case TagAlive:
		if err := expectSize(tag, buf, aliveSize); err != nil {
			return nil, err
		}
		var p Alive
		copy(p.OriginID[:], body)
		return p, nil
	case TagHello:
		if len(buf) < helloHeaderSize {
			return nil, errors.Wrap(types.ErrInvalidMessage, "truncated hello payload")
		}
		length := binary.LittleEndian.Uint32(body)
		if length > MaxHelloLength {
			return nil, errors.Wrapf(types.ErrInvalidMessage, "hello length %d exceeds %d", length, MaxHelloLength)
		}
		if err := expectSize(tag, buf, helloHeaderSize+int(length)); err != nil {
			return nil, err
		}
		if length == 0 {
			return Hello{}, nil
		}
		return Hello{AmountText: append([]byte{}, body[4:]...)}, nil
	case TagBurnNotice:
		if err := expectSize(tag, buf, burnNoticeSize); err != nil {
			return nil, err
		}
		p := BurnNotice{Amount: binary.LittleEndian.Uint64(body)}
		copy(p.Recipient[:], body[8:])
		return p, nil
	default:
		return nil, errors.Wrapf(types.ErrInvalidMessage, "unknown payload tag %d", tag)
	}
}

func expectSize(tag Tag, buf []byte, expected int) error {
	if len(buf) != expected {
		return errors.Wrapf(types.ErrInvalidMessage, "payload with tag %d has size %d, expected %d",
			tag, len(buf), expected)
	}
	return nil
}
