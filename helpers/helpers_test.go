package helpers

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/tokenbridge/types"
)

func TestRecipient(t *testing.T) {
	requireT := require.New(t)

	r, err := Recipient([]byte{0x01, 0x02})
	requireT.NoError(err)
	requireT.Equal(types.Address{30: 0x01, 31: 0x02}, r)

	full := bytes.Repeat([]byte{0xaa}, types.AddressLength)
	r, err = Recipient(full)
	requireT.NoError(err)
	requireT.Equal(full, r[:])

	_, err = Recipient(nil)
	requireT.ErrorIs(err, types.ErrInvalidRecipient)

	_, err = Recipient(make([]byte, types.AddressLength+1))
	requireT.ErrorIs(err, types.ErrInvalidRecipient)
}

func TestEVMRecipient(t *testing.T) {
	requireT := require.New(t)

	r, err := EVMRecipient("0x00000000000000000000000000000000000000Ff")
	requireT.NoError(err)
	requireT.Equal(types.Address{31: 0xff}, r)

	r, err = EVMRecipient("0x8ba1f109551bD432803012645Ac136ddd64DBA72")
	requireT.NoError(err)
	requireT.Equal(make([]byte, 12), r[:12])
	requireT.EqualValues(0x8b, r[12])
	requireT.EqualValues(0x72, r[31])

	_, err = EVMRecipient("0x1234")
	requireT.ErrorIs(err, types.ErrInvalidRecipient)
}

func TestSeeds(t *testing.T) {
	requireT := require.New(t)

	requireT.Equal([]byte{0x02, 0x01}, NetworkSeed(0x0102))
	requireT.Equal([]byte{0x01, 0, 0, 0, 0, 0, 0, 0}, SequenceSeed(1))
}
