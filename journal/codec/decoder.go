package codec

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"github.com/outofforest/proton"
	"github.com/outofforest/varuint64"
)

// MaxFrameSize is the maximum size of the frame following its length prefix.
const MaxFrameSize = 64 * 1024

// ErrCorrupted is returned when complete frame is found to be invalid.
var ErrCorrupted = errors.New("corrupted stream")

// NewDecoder creates new decoder.
func NewDecoder(checksumSeed uint64, r io.Reader, m proton.Marshaller) *Decoder {
	return &Decoder{
		r:            r,
		m:            m,
		buf:          make([]byte, varuint64.MaxSize),
		checksumSeed: checksumSeed,
	}
}

// Decoder decodes entities from the input stream.
type Decoder struct {
	r io.Reader
	m proton.Marshaller

	buf          []byte
	checksumSeed uint64
	count        uint64
}

// Decode decodes single entity. It returns the number of bytes consumed so far by valid entities.
// io.EOF is returned when the stream ends, either cleanly or in the middle of the frame.
// Complete frame which is invalid causes ErrCorrupted.
func (d *Decoder) Decode() (uint64, any, error) {
	var sizeReceived uint64
	for !varuint64.Contains(d.buf[:sizeReceived]) {
		if sizeReceived >= uint64(varuint64.MaxSize) {
			return 0, nil, errors.Wrap(ErrCorrupted, "invalid frame length")
		}
		n, err := d.r.Read(d.buf[sizeReceived : sizeReceived+1])
		if err != nil {
			return 0, nil, eof(err)
		}
		sizeReceived += uint64(n)
	}

	size, n := varuint64.Parse(d.buf[:sizeReceived])
	if size <= checksumSize || size > MaxFrameSize {
		return 0, nil, errors.Wrapf(ErrCorrupted, "invalid frame length %d", size)
	}
	if uint64(len(d.buf)) < size+n {
		buf := make([]byte, size+n)
		copy(buf, d.buf[:n])
		d.buf = buf
	}

	if _, err := io.ReadFull(d.r, d.buf[n:n+size]); err != nil {
		return 0, nil, eof(err)
	}

	checksum := xxh3.HashSeed(d.buf[:n+size-checksumSize], d.checksumSeed)
	expectedChecksum := binary.LittleEndian.Uint64(d.buf[n+size-checksumSize:])

	if checksum != expectedChecksum {
		return 0, nil, errors.Wrapf(ErrCorrupted, "checksum mismatch at offset %d", d.count)
	}

	if !varuint64.Contains(d.buf[n : n+size-checksumSize]) {
		return 0, nil, errors.Wrap(ErrCorrupted, "invalid entity ID")
	}
	id, n2 := varuint64.Parse(d.buf[n:])
	v, _, err := d.m.Unmarshal(id, d.buf[n+n2:n+size-checksumSize])
	if err != nil {
		return 0, nil, errors.Wrapf(ErrCorrupted, "entity at offset %d: %s", d.count, err)
	}
	d.checksumSeed = checksum
	d.count += n + size

	return d.count, v, nil
}

// Checksum returns the checksum of the last decoded entity.
func (d *Decoder) Checksum() uint64 {
	return d.checksumSeed
}

func eof(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.WithStack(io.EOF)
	}
	return errors.WithStack(err)
}
