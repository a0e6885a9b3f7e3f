package codec

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/tokenbridge/journal/format"
	"github.com/outofforest/tokenbridge/types"
)

func TestEncoderDecoder(t *testing.T) {
	requireT := require.New(t)

	buf := bytes.NewBuffer(nil)
	m := format.NewMarshaller()

	e := NewEncoder(7, buf, m)
	requireT.NoError(e.Encode(types.LocalEmitter{Bump: 254}))
	requireT.NoError(e.Encode(
		types.EmitterRecord{NetworkID: 2, Address: types.Address{0x01}},
		types.ReplayRecord{NetworkID: 2, Sequence: 5, Payload: []byte{0x01, 0x02}},
	))

	d := NewDecoder(7, buf, m)

	// 1 size byte + 1 id byte + 1 body byte + 8 checksum bytes.
	n, v, err := d.Decode()
	requireT.NoError(err)
	requireT.Equal(types.LocalEmitter{Bump: 254}, v)
	requireT.EqualValues(11, n)

	// 1 + 1 + 34 + 8.
	n, v, err = d.Decode()
	requireT.NoError(err)
	requireT.Equal(types.EmitterRecord{NetworkID: 2, Address: types.Address{0x01}}, v)
	requireT.EqualValues(55, n)

	// 1 + 1 + 14 + 3 + 8.
	n, v, err = d.Decode()
	requireT.NoError(err)
	requireT.Equal(types.ReplayRecord{NetworkID: 2, Sequence: 5, Payload: []byte{0x01, 0x02}}, v)
	requireT.EqualValues(82, n)
	requireT.Equal(e.Checksum(), d.Checksum())

	n, v, err = d.Decode()
	requireT.ErrorIs(err, io.EOF)
	requireT.Nil(v)
	requireT.Zero(n)
}

func TestInvalidChecksum(t *testing.T) {
	requireT := require.New(t)

	buf := bytes.NewBuffer(nil)
	m := format.NewMarshaller()

	e := NewEncoder(0, buf, m)
	requireT.NoError(e.Encode(types.LocalEmitter{Bump: 1}))
	requireT.NoError(e.Encode(types.LocalEmitter{Bump: 2}))

	b := buf.Bytes()
	b[len(b)-1]++

	d := NewDecoder(0, bytes.NewReader(b), m)

	n, v, err := d.Decode()
	requireT.NoError(err)
	requireT.Equal(types.LocalEmitter{Bump: 1}, v)
	requireT.EqualValues(11, n)

	n, v, err = d.Decode()
	requireT.ErrorIs(err, ErrCorrupted)
	requireT.Nil(v)
	requireT.Zero(n)
}

func TestCorruptedFirstFrame(t *testing.T) {
	requireT := require.New(t)

	buf := bytes.NewBuffer(nil)
	m := format.NewMarshaller()

	requireT.NoError(NewEncoder(0, buf, m).Encode(
		types.ReplayRecord{NetworkID: 2, Sequence: 1, Payload: []byte{0x01}},
		types.ReplayRecord{NetworkID: 2, Sequence: 2, Payload: []byte{0x01}},
	))

	b := buf.Bytes()
	b[5]++

	_, v, err := NewDecoder(0, bytes.NewReader(b), m).Decode()
	requireT.ErrorIs(err, ErrCorrupted)
	requireT.Nil(v)
}

func TestInvalidFrameLength(t *testing.T) {
	requireT := require.New(t)

	m := format.NewMarshaller()

	_, _, err := NewDecoder(0, bytes.NewReader([]byte{0x03, 0x00, 0x00, 0x00}), m).Decode()
	requireT.ErrorIs(err, ErrCorrupted)

	_, _, err = NewDecoder(0, bytes.NewReader(bytes.Repeat([]byte{0xff}, 16)), m).Decode()
	requireT.ErrorIs(err, ErrCorrupted)
}

func TestChecksumSeed(t *testing.T) {
	requireT := require.New(t)

	buf := bytes.NewBuffer(nil)
	m := format.NewMarshaller()

	requireT.NoError(NewEncoder(1, buf, m).Encode(types.LocalEmitter{Bump: 1}))

	_, v, err := NewDecoder(2, buf, m).Decode()
	requireT.ErrorIs(err, ErrCorrupted)
	requireT.Nil(v)
}

func TestTruncatedStream(t *testing.T) {
	requireT := require.New(t)

	buf := bytes.NewBuffer(nil)
	m := format.NewMarshaller()

	requireT.NoError(NewEncoder(0, buf, m).Encode(
		types.LocalEmitter{Bump: 1},
		types.EmitterRecord{NetworkID: 3},
	))

	b := buf.Bytes()
	d := NewDecoder(0, bytes.NewReader(b[:len(b)-5]), m)

	_, v, err := d.Decode()
	requireT.NoError(err)
	requireT.Equal(types.LocalEmitter{Bump: 1}, v)

	_, v, err = d.Decode()
	requireT.ErrorIs(err, io.EOF)
	requireT.Nil(v)
}

func TestUnknownEntity(t *testing.T) {
	requireT := require.New(t)

	e := NewEncoder(0, bytes.NewBuffer(nil), format.NewMarshaller())
	requireT.Error(e.Encode("unknown"))
}
