// Package derive computes identities owned by a program.
//
// Derived identity is a hash of seeds, bump and program ID which does not lie on the ed25519 curve,
// so no private key exists for it. Only the program may act on its behalf, by presenting the seeds
// and the bump again.
package derive

import (
	"crypto/sha256"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"

	"github.com/outofforest/tokenbridge/types"
)

const (
	// MaxSeeds is the maximum number of seeds used to derive an identity.
	MaxSeeds = 16

	// MaxSeedLength is the maximum length of a single seed.
	MaxSeedLength = 32

	marker = "ProgramDerivedAddress"
)

// Seeds used by the bridge.
var (
	SeedConfig         = []byte("config")
	SeedEmitter        = []byte("emitter")
	SeedForeignEmitter = []byte("foreign_emitter")
	SeedReceived       = []byte("received")
	SeedSent           = []byte("sent")
	SeedMintAuthority  = []byte("mint_authority")
)

// ErrOnCurve is returned when seeds and bump produce a point on the curve.
var ErrOnCurve = errors.New("derived identity lies on the curve")

// Identity derives the identity for seeds and the bump stored previously.
func Identity(programID types.Address, bump uint8, seeds ...[]byte) (types.Address, error) {
	if len(seeds) >= MaxSeeds {
		return types.ZeroAddress, errors.Errorf("too many seeds: %d", len(seeds))
	}
	for _, s := range seeds {
		if len(s) > MaxSeedLength {
			return types.ZeroAddress, errors.Errorf("seed too long: %d", len(s))
		}
	}

	h := sha256.New()
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write([]byte{bump})
	h.Write(programID[:])
	h.Write([]byte(marker))

	var id types.Address
	h.Sum(id[:0])

	if onCurve(id) {
		return types.ZeroAddress, errors.WithStack(ErrOnCurve)
	}
	return id, nil
}

// Find searches for the highest bump producing valid identity for seeds.
func Find(programID types.Address, seeds ...[]byte) (types.Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		id, err := Identity(programID, uint8(bump), seeds...)
		switch {
		case err == nil:
			return id, uint8(bump), nil
		case errors.Is(err, ErrOnCurve):
		default:
			return types.ZeroAddress, 0, err
		}
	}
	return types.ZeroAddress, 0, errors.New("unable to find valid bump")
}

// MustFind is Find panicking on error.
func MustFind(programID types.Address, seeds ...[]byte) (types.Address, uint8) {
	id, bump, err := Find(programID, seeds...)
	if err != nil {
		panic(err)
	}
	return id, bump
}

func onCurve(id types.Address) bool {
	_, err := new(edwards25519.Point).SetBytes(id[:])
	return err == nil
}
