// Package token implements the token ledger the bridge mints into and burns from.
package token

import (
	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/outofforest/tokenbridge/state"
	"github.com/outofforest/tokenbridge/types"
)

const (
	tableMint    = "token_mint"
	tableAccount = "token_account"
)

var (
	// ErrUnauthorized means that authority is not allowed to perform the operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInsufficientFunds means that account balance is lower than the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnknownMint means that mint does not exist.
	ErrUnknownMint = errors.New("unknown mint")

	// ErrSupplyOverflow means that operation would overflow the supply or balance.
	ErrSupplyOverflow = errors.New("supply overflow")
)

// Mint describes the token.
type Mint struct {
	Address       types.Address
	Decimals      uint8
	MintAuthority types.Address
	Supply        uint64
}

// Account stores the balance of the owner.
type Account struct {
	Mint    types.Address
	Owner   types.Address
	Balance uint64
}

// Tables returns the tables used by the ledger.
func Tables() []*memdb.TableSchema {
	return []*memdb.TableSchema{state.Table(tableMint), state.Table(tableAccount)}
}

// Ledger performs balance bookkeeping.
type Ledger struct{}

// CreateMint creates new token.
func (l Ledger) CreateMint(tx *state.Tx, mint types.Address, decimals uint8, mintAuthority types.Address) error {
	if !tx.Insert(tableMint, mint[:], Mint{
		Address:       mint,
		Decimals:      decimals,
		MintAuthority: mintAuthority,
	}) {
		return errors.Errorf("mint %s already exists", mint)
	}
	return nil
}

// Decimals returns the number of decimals of the token.
func (l Ledger) Decimals(v *state.View, mint types.Address) (uint8, error) {
	m, err := l.mint(v, mint)
	if err != nil {
		return 0, err
	}
	return m.Decimals, nil
}

// Supply returns the total supply of the token.
func (l Ledger) Supply(v *state.View, mint types.Address) (uint64, error) {
	m, err := l.mint(v, mint)
	if err != nil {
		return 0, err
	}
	return m.Supply, nil
}

// Balance returns the balance of the owner.
func (l Ledger) Balance(v *state.View, mint, owner types.Address) uint64 {
	account, _ := state.Get[Account](v, tableAccount, accountKey(mint, owner))
	return account.Balance
}

// Mint issues amount of tokens to the owner.
func (l Ledger) Mint(tx *state.Tx, mint, to, authority types.Address, amount uint64) error {
	m, err := l.mint(tx.View, mint)
	if err != nil {
		return err
	}
	if authority != m.MintAuthority {
		return errors.Wrapf(ErrUnauthorized, "%s is not the mint authority of %s", authority, mint)
	}
	if m.Supply+amount < m.Supply {
		return errors.WithStack(ErrSupplyOverflow)
	}

	account := l.account(tx.View, mint, to)
	account.Balance += amount
	m.Supply += amount

	tx.Set(tableMint, mint[:], m)
	tx.Set(tableAccount, accountKey(mint, to), account)
	return nil
}

// Burn destroys amount of tokens owned by the account. Only the owner may burn its tokens.
func (l Ledger) Burn(tx *state.Tx, mint, from, authority types.Address, amount uint64) error {
	m, err := l.mint(tx.View, mint)
	if err != nil {
		return err
	}
	if authority != from {
		return errors.Wrapf(ErrUnauthorized, "%s is not the owner of the account", authority)
	}

	account := l.account(tx.View, mint, from)
	if account.Balance < amount {
		return errors.Wrapf(ErrInsufficientFunds, "balance %d, requested %d", account.Balance, amount)
	}
	account.Balance -= amount
	m.Supply -= amount

	tx.Set(tableMint, mint[:], m)
	tx.Set(tableAccount, accountKey(mint, from), account)
	return nil
}

func (l Ledger) mint(v *state.View, mint types.Address) (Mint, error) {
	m, exists := state.Get[Mint](v, tableMint, mint[:])
	if !exists {
		return Mint{}, errors.Wrapf(ErrUnknownMint, "mint %s", mint)
	}
	return m, nil
}

func (l Ledger) account(v *state.View, mint, owner types.Address) Account {
	account, exists := state.Get[Account](v, tableAccount, accountKey(mint, owner))
	if !exists {
		return Account{Mint: mint, Owner: owner}
	}
	return account
}

func accountKey(mint, owner types.Address) []byte {
	return append(append(make([]byte, 0, 2*types.AddressLength), mint[:]...), owner[:]...)
}
