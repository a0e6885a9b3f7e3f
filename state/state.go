package state

import (
	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/outofforest/tokenbridge/helpers"
	"github.com/outofforest/tokenbridge/types"
)

const (
	tableConfig       = "config"
	tableLocalEmitter = "local_emitter"
	tableEmitter      = "emitter"
	tableReceived     = "received"
	tableSent         = "sent"

	idIndex = "id"
)

var singletonKey = []byte{0x00}

// Sink receives entities modified by transaction before it is committed.
type Sink interface {
	Append(entities ...any) error
}

// Table returns the schema of a table storing entities under binary keys.
func Table(name string) *memdb.TableSchema {
	return &memdb.TableSchema{
		Name: name,
		Indexes: map[string]*memdb.IndexSchema{
			idIndex: {
				Name:    idIndex,
				Unique:  true,
				Indexer: keyIndexer{},
			},
		},
	}
}

// New creates new store. Tables passed to the function are created next to the bridge tables,
// so collaborators might modify their state in the same transactions. Only bridge entities are sent to the sink.
func New(sink Sink, tables ...*memdb.TableSchema) (*Store, error) {
	schema := &memdb.DBSchema{Tables: map[string]*memdb.TableSchema{}}
	for _, name := range []string{tableConfig, tableLocalEmitter, tableEmitter, tableReceived, tableSent} {
		schema.Tables[name] = Table(name)
	}
	for _, t := range tables {
		if _, exists := schema.Tables[t.Name]; exists {
			return nil, errors.Errorf("double registration of table %s", t.Name)
		}
		schema.Tables[t.Name] = t
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &Store{
		db:   db,
		sink: sink,
	}, nil
}

// Store keeps the state of the bridge.
type Store struct {
	db   *memdb.MemDB
	sink Sink
}

// View returns the snapshot of the current state.
func (s *Store) View() *View {
	return &View{txn: s.db.Txn(false)}
}

// Update executes fn in write transaction. Transaction is committed only if fn returns nil
// and all the changes are accepted by the sink, otherwise none of the changes is applied.
// Write transactions are executed one at a time.
func (s *Store) Update(fn func(tx *Tx) error) error {
	tx := &Tx{
		View: &View{txn: s.db.Txn(true)},
	}

	if err := fn(tx); err != nil {
		tx.txn.Abort()
		return err
	}

	if s.sink != nil && len(tx.changes) > 0 {
		if err := s.sink.Append(tx.changes...); err != nil {
			tx.txn.Abort()
			return err
		}
	}

	tx.txn.Commit()
	return nil
}

// Restore inserts previously journaled bridge entities without sending them to the sink.
func (s *Store) Restore(entities ...any) error {
	txn := s.db.Txn(true)
	for _, e := range entities {
		table, key, err := entityKey(e)
		if err != nil {
			txn.Abort()
			return err
		}
		insert(txn, table, key, e)
	}
	txn.Commit()
	return nil
}

// View represents immutable snapshot of the state.
type View struct {
	txn *memdb.Txn
}

// Get returns the entity stored under key.
func Get[T any](v *View, table string, key []byte) (T, bool) {
	o, err := v.txn.First(table, idIndex, key)
	if err != nil {
		panic(errors.WithStack(err))
	}

	if o == nil {
		var t T
		return t, false
	}
	return o.(*record).value.(T), true
}

// All iterates over all entities stored in the table.
func All[T any](v *View, table string) func(func(T) bool) {
	it, err := v.txn.Get(table, idIndex)
	if err != nil {
		panic(errors.WithStack(err))
	}

	return func(yield func(e T) bool) {
		for o := it.Next(); o != nil; o = it.Next() {
			if !yield(o.(*record).value.(T)) {
				return
			}
		}
	}
}

// Tx represents write transaction.
type Tx struct {
	*View

	changes []any
}

// Set stores the entity under key, replacing the previous one.
func (tx *Tx) Set(table string, key []byte, value any) {
	insert(tx.txn, table, key, value)
}

// Insert stores the entity under key if no entity exists there yet.
// It returns false if the key is already taken. Lookup and insert are atomic because
// go-memdb admits a single write transaction at a time.
func (tx *Tx) Insert(table string, key []byte, value any) bool {
	if _, exists := Get[any](tx.View, table, key); exists {
		return false
	}
	insert(tx.txn, table, key, value)
	return true
}

func (tx *Tx) set(e any) {
	table, key, err := entityKey(e)
	if err != nil {
		panic(err)
	}
	tx.Set(table, key, e)
	tx.changes = append(tx.changes, e)
}

func (tx *Tx) insert(e any) bool {
	table, key, err := entityKey(e)
	if err != nil {
		panic(err)
	}
	if !tx.Insert(table, key, e) {
		return false
	}
	tx.changes = append(tx.changes, e)
	return true
}

type record struct {
	key   []byte
	value any
}

func insert(txn *memdb.Txn, table string, key []byte, value any) {
	if err := txn.Insert(table, &record{key: key, value: value}); err != nil {
		panic(errors.WithStack(err))
	}
}

func entityKey(e any) (string, []byte, error) {
	switch e := e.(type) {
	case types.Config:
		return tableConfig, singletonKey, nil
	case types.LocalEmitter:
		return tableLocalEmitter, singletonKey, nil
	case types.EmitterRecord:
		return tableEmitter, emitterKey(e.NetworkID), nil
	case types.ReplayRecord:
		return tableReceived, receivedKey(e.NetworkID, e.Sequence), nil
	case types.SentRecord:
		return tableSent, helpers.SequenceSeed(e.Sequence), nil
	default:
		return "", nil, errors.Errorf("unsupported entity %T", e)
	}
}

func emitterKey(networkID types.NetworkID) []byte {
	return helpers.NetworkSeed(networkID)
}

func receivedKey(networkID types.NetworkID, sequence types.Sequence) []byte {
	return append(helpers.NetworkSeed(networkID), helpers.SequenceSeed(sequence)...)
}

type keyIndexer struct{}

func (keyIndexer) FromObject(raw any) (bool, []byte, error) {
	r, ok := raw.(*record)
	if !ok {
		return false, nil, errors.Errorf("unexpected object %T", raw)
	}
	return true, r.key, nil
}

func (keyIndexer) FromArgs(args ...any) ([]byte, error) {
	if len(args) != 1 {
		return nil, errors.Errorf("expected one argument, got %d", len(args))
	}
	key, ok := args[0].([]byte)
	if !ok {
		return nil, errors.Errorf("expected []byte key, got %T", args[0])
	}
	return key, nil
}
