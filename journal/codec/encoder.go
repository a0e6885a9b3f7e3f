package codec

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"github.com/outofforest/proton"
	"github.com/outofforest/varuint64"
)

const checksumSize = 8

// NewEncoder creates new encoder.
func NewEncoder(checksumSeed uint64, w io.Writer, m proton.Marshaller) *Encoder {
	return &Encoder{
		w:            w,
		m:            m,
		checksumSeed: checksumSeed,
	}
}

// Encoder encodes entities to the output stream.
type Encoder struct {
	w io.Writer
	m proton.Marshaller

	buf          []byte
	checksumSeed uint64
}

// Encode encodes entities and writes them to the stream in a single write.
// Checksum chain is advanced only if the write succeeds.
func (e *Encoder) Encode(vs ...any) error {
	var totalSize uint64
	for _, v := range vs {
		id, err := e.m.ID(v)
		if err != nil {
			return err
		}
		size, err := e.m.Size(v)
		if err != nil {
			return err
		}
		vSize := size + varuint64.Size(id) + checksumSize
		if vSize > MaxFrameSize {
			return errors.Errorf("entity %T exceeds maximum frame size: %d", v, vSize)
		}
		totalSize += vSize + varuint64.Size(vSize)
	}

	if uint64(len(e.buf)) < totalSize {
		e.buf = make([]byte, totalSize)
	}

	checksumSeed := e.checksumSeed
	var offset uint64
	for _, v := range vs {
		id, _ := e.m.ID(v)
		size, _ := e.m.Size(v)
		vSize := size + varuint64.Size(id) + checksumSize

		start := offset
		offset += varuint64.Put(e.buf[offset:], vSize)
		offset += varuint64.Put(e.buf[offset:], id)
		_, n, err := e.m.Marshal(v, e.buf[offset:offset+size])
		if err != nil {
			return err
		}
		if n != size {
			return errors.Errorf("entity %T: marshaled %d bytes, expected %d", v, n, size)
		}
		offset += size

		checksumSeed = xxh3.HashSeed(e.buf[start:offset], checksumSeed)
		binary.LittleEndian.PutUint64(e.buf[offset:], checksumSeed)
		offset += checksumSize
	}

	if _, err := e.w.Write(e.buf[:totalSize]); err != nil {
		return errors.WithStack(err)
	}
	e.checksumSeed = checksumSeed
	return nil
}

// Checksum returns the checksum of the last encoded entity.
func (e *Encoder) Checksum() uint64 {
	return e.checksumSeed
}
