package types

import "github.com/pkg/errors"

var (
	// ErrOwnerOnly means that operation may be requested only by the governance identity.
	ErrOwnerOnly = errors.New("owner only")

	// ErrInvalidForeignEmitter means that remote source is not registered or the registration is invalid.
	ErrInvalidForeignEmitter = errors.New("invalid foreign emitter")

	// ErrInvalidMintDecimals means that token mint has unexpected number of decimals.
	ErrInvalidMintDecimals = errors.New("mint has invalid decimals")

	// ErrInvalidMessage means that payload is malformed or has unexpected variant.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrDuplicateMessage means that inbound message has been already applied.
	ErrDuplicateMessage = errors.New("duplicate message")

	// ErrPublicMintDisabled means that minting from inbound messages is disabled.
	ErrPublicMintDisabled = errors.New("public mint is disabled")

	// ErrAmountTooSmall means that amount does not exceed the surcharge.
	ErrAmountTooSmall = errors.New("amount too small to mint after deducting surcharge")

	// ErrInvalidAmount means that amount is zero or out of range.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidTransportConfig means that transport addresses don't match the stored config.
	ErrInvalidTransportConfig = errors.New("invalid transport config")

	// ErrInvalidRecipient means that recipient address can't be encoded into outbound payload.
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrAlreadyBootstrapped means that config has been already created.
	ErrAlreadyBootstrapped = errors.New("already bootstrapped")

	// ErrNotBootstrapped means that config has not been created yet.
	ErrNotBootstrapped = errors.New("not bootstrapped")
)
