package format

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/outofforest/proton"
	"github.com/outofforest/tokenbridge/types"
	"github.com/outofforest/varuint64"
)

// IDs of journaled entities.
const (
	IDConfig uint64 = iota + 1
	IDLocalEmitter
	IDEmitterRecord
	IDReplayRecord
	IDSentRecord
)

const (
	configSize       = 32 + 3*32 + 1 + 4 + 1 + 2 + 32 + 8 + 1 + 1
	localEmitterSize = 1
	emitterSize      = 2 + 32
	replaySize       = 2 + 8 + 4
	sentSize         = 8 + 32 + 32 + 8 + 32
)

var _ proton.Marshaller = Marshaller{}

// NewMarshaller creates marshaller of journaled entities.
func NewMarshaller() Marshaller {
	return Marshaller{}
}

// Marshaller converts journaled entities to bytes and back.
type Marshaller struct{}

// ID returns ID of the entity type.
func (m Marshaller) ID(v any) (uint64, error) {
	switch v.(type) {
	case types.Config:
		return IDConfig, nil
	case types.LocalEmitter:
		return IDLocalEmitter, nil
	case types.EmitterRecord:
		return IDEmitterRecord, nil
	case types.ReplayRecord:
		return IDReplayRecord, nil
	case types.SentRecord:
		return IDSentRecord, nil
	default:
		return 0, errors.Errorf("unknown entity %T", v)
	}
}

// Size returns the size of encoded entity.
func (m Marshaller) Size(v any) (uint64, error) {
	switch e := v.(type) {
	case types.Config:
		return configSize, nil
	case types.LocalEmitter:
		return localEmitterSize, nil
	case types.EmitterRecord:
		return emitterSize, nil
	case types.ReplayRecord:
		return replaySize + bytesSize(e.Payload), nil
	case types.SentRecord:
		return sentSize + bytesSize(e.Payload), nil
	default:
		return 0, errors.Errorf("unknown entity %T", v)
	}
}

// Marshal encodes entity into buf and returns its ID and the number of bytes written.
func (m Marshaller) Marshal(v any, buf []byte) (uint64, uint64, error) {
	id, err := m.ID(v)
	if err != nil {
		return 0, 0, err
	}
	size, err := m.Size(v)
	if err != nil {
		return 0, 0, err
	}
	if uint64(len(buf)) < size {
		return 0, 0, errors.Errorf("buffer too small: %d < %d", len(buf), size)
	}

	w := writer{buf: buf}
	switch e := v.(type) {
	case types.Config:
		w.address(e.Owner)
		w.address(e.Transport.Bridge)
		w.address(e.Transport.FeeCollector)
		w.address(e.Transport.Sequence)
		w.bool(e.PublicMint)
		w.uint32(uint32(e.BatchID))
		w.byte(byte(e.Finality))
		w.uint16(uint16(e.LocalNetworkID))
		w.address(e.TokenMint)
		w.uint64(e.Surcharge)
		w.byte(byte(e.SurchargeMode))
		w.byte(e.MintAuthorityBump)
	case types.LocalEmitter:
		w.byte(e.Bump)
	case types.EmitterRecord:
		w.uint16(uint16(e.NetworkID))
		w.address(e.Address)
	case types.ReplayRecord:
		w.uint16(uint16(e.NetworkID))
		w.uint64(uint64(e.Sequence))
		w.uint32(uint32(e.BatchID))
		w.bytes(e.Payload)
	case types.SentRecord:
		w.uint64(uint64(e.Sequence))
		w.address(e.Message)
		w.address(e.Sender)
		w.uint64(e.Amount)
		w.address(e.Recipient)
		w.bytes(e.Payload)
	}
	return id, w.n, nil
}

// Unmarshal decodes entity of type identified by id. The whole buf must be consumed.
func (m Marshaller) Unmarshal(id uint64, buf []byte) (any, uint64, error) {
	r := reader{buf: buf}
	var v any
	switch id {
	case IDConfig:
		var e types.Config
		e.Owner = r.address()
		e.Transport.Bridge = r.address()
		e.Transport.FeeCollector = r.address()
		e.Transport.Sequence = r.address()
		e.PublicMint = r.bool()
		e.BatchID = types.BatchID(r.uint32())
		e.Finality = types.Finality(r.byte())
		e.LocalNetworkID = types.NetworkID(r.uint16())
		e.TokenMint = r.address()
		e.Surcharge = r.uint64()
		e.SurchargeMode = types.SurchargeMode(r.byte())
		e.MintAuthorityBump = r.byte()
		v = e
	case IDLocalEmitter:
		v = types.LocalEmitter{Bump: r.byte()}
	case IDEmitterRecord:
		var e types.EmitterRecord
		e.NetworkID = types.NetworkID(r.uint16())
		e.Address = r.address()
		v = e
	case IDReplayRecord:
		var e types.ReplayRecord
		e.NetworkID = types.NetworkID(r.uint16())
		e.Sequence = types.Sequence(r.uint64())
		e.BatchID = types.BatchID(r.uint32())
		e.Payload = r.bytes()
		v = e
	case IDSentRecord:
		var e types.SentRecord
		e.Sequence = types.Sequence(r.uint64())
		e.Message = r.address()
		e.Sender = r.address()
		e.Amount = r.uint64()
		e.Recipient = r.address()
		e.Payload = r.bytes()
		v = e
	default:
		return nil, 0, errors.Errorf("unknown entity ID %d", id)
	}

	if r.err != nil {
		return nil, 0, r.err
	}
	if r.n != uint64(len(buf)) {
		return nil, 0, errors.Errorf("entity %d: %d unexpected trailing bytes", id, uint64(len(buf))-r.n)
	}
	return v, r.n, nil
}

func bytesSize(b []byte) uint64 {
	return varuint64.Size(uint64(len(b))) + uint64(len(b))
}

type writer struct {
	buf []byte
	n   uint64
}

func (w *writer) byte(b byte) {
	w.buf[w.n] = b
	w.n++
}

func (w *writer) bool(b bool) {
	if b {
		w.byte(1)
		return
	}
	w.byte(0)
}

func (w *writer) uint16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[w.n:], v)
	w.n += 2
}

func (w *writer) uint32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.n:], v)
	w.n += 4
}

func (w *writer) uint64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[w.n:], v)
	w.n += 8
}

func (w *writer) address(a types.Address) {
	w.n += uint64(copy(w.buf[w.n:], a[:]))
}

func (w *writer) bytes(b []byte) {
	w.n += varuint64.Put(w.buf[w.n:], uint64(len(b)))
	w.n += uint64(copy(w.buf[w.n:], b))
}

type reader struct {
	buf []byte
	n   uint64
	err error
}

func (r *reader) take(size uint64) []byte {
	if r.err != nil {
		return nil
	}
	if uint64(len(r.buf))-r.n < size {
		r.err = errors.New("unexpected end of entity")
		return nil
	}
	b := r.buf[r.n : r.n+size]
	r.n += size
	return b
}

func (r *reader) byte() byte {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) bool() bool {
	return r.byte() != 0
}

func (r *reader) uint16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *reader) uint32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) uint64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *reader) address() types.Address {
	var a types.Address
	if b := r.take(types.AddressLength); b != nil {
		copy(a[:], b)
	}
	return a
}

func (r *reader) bytes() []byte {
	if r.err != nil {
		return nil
	}
	if !varuint64.Contains(r.buf[r.n:]) {
		r.err = errors.New("invalid length prefix")
		return nil
	}
	size, n := varuint64.Parse(r.buf[r.n:])
	r.n += n
	if size == 0 {
		return nil
	}
	b := r.take(size)
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
