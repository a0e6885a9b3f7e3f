package state

import (
	"github.com/pkg/errors"

	"github.com/outofforest/tokenbridge/types"
)

// BootstrapParams are the parameters of the config created on bootstrap.
type BootstrapParams struct {
	LocalNetworkID    types.NetworkID
	TokenMint         types.Address
	Transport         types.TransportAddresses
	Surcharge         uint64
	SurchargeMode     types.SurchargeMode
	MintAuthorityBump uint8
	LocalEmitterBump  uint8
}

// Bootstrap creates the config and the local emitter identity. It might be done only once.
func (tx *Tx) Bootstrap(owner types.Address, params BootstrapParams) (types.Config, error) {
	if owner.IsZero() {
		return types.Config{}, errors.New("owner must not be zero")
	}
	if params.LocalNetworkID == 0 {
		return types.Config{}, errors.New("local network ID must not be zero")
	}
	if !params.SurchargeMode.Valid() {
		return types.Config{}, errors.Errorf("invalid surcharge mode %d", params.SurchargeMode)
	}

	config := types.Config{
		Owner:             owner,
		Transport:         params.Transport,
		Finality:          types.FinalityConfirmed,
		LocalNetworkID:    params.LocalNetworkID,
		TokenMint:         params.TokenMint,
		Surcharge:         params.Surcharge,
		SurchargeMode:     params.SurchargeMode,
		MintAuthorityBump: params.MintAuthorityBump,
	}
	if !tx.insert(config) {
		return types.Config{}, errors.WithStack(types.ErrAlreadyBootstrapped)
	}
	if !tx.insert(types.LocalEmitter{Bump: params.LocalEmitterBump}) {
		return types.Config{}, errors.WithStack(types.ErrAlreadyBootstrapped)
	}
	return config, nil
}

// Config returns the config.
func (v *View) Config() (types.Config, error) {
	config, exists := Get[types.Config](v, tableConfig, singletonKey)
	if !exists {
		return types.Config{}, errors.WithStack(types.ErrNotBootstrapped)
	}
	return config, nil
}

// LocalEmitter returns the local emitter identity.
func (v *View) LocalEmitter() (types.LocalEmitter, error) {
	emitter, exists := Get[types.LocalEmitter](v, tableLocalEmitter, singletonKey)
	if !exists {
		return types.LocalEmitter{}, errors.WithStack(types.ErrNotBootstrapped)
	}
	return emitter, nil
}

// SetPublicMint enables or disables minting from inbound messages.
func (tx *Tx) SetPublicMint(requestedBy types.Address, enabled bool) (types.Config, error) {
	config, err := tx.owned(requestedBy)
	if err != nil {
		return types.Config{}, err
	}

	config.PublicMint = enabled
	tx.set(config)
	return config, nil
}

func (v *View) owned(requestedBy types.Address) (types.Config, error) {
	config, err := v.Config()
	if err != nil {
		return types.Config{}, err
	}
	if requestedBy != config.Owner {
		return types.Config{}, errors.Wrapf(types.ErrOwnerOnly, "requested by %s", requestedBy)
	}
	return config, nil
}
