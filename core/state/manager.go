package state

import (
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"bondchain/storage"
)

// Manager is a typed view over the key-value store for the duration of one
// unit of work. Writes are journaled in memory until Commit flushes them in a
// single batch; Discard drops them, leaving storage untouched.
type Manager struct {
	db      storage.Database
	dirty   map[string][]byte
	deleted map[string]struct{}
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

var errNilManager = errors.New("state manager unavailable")

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// get returns nil when the key is absent.
func (m *Manager) get(key []byte) ([]byte, error) {
	if m == nil || m.db == nil {
		return nil, errNilManager
	}
	k := string(key)
	if value, ok := m.dirty[k]; ok {
		return value, nil
	}
	if _, ok := m.deleted[k]; ok {
		return nil, nil
	}
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (m *Manager) put(key, value []byte) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	k := string(key)
	delete(m.deleted, k)
	m.dirty[k] = append([]byte(nil), value...)
	return nil
}

func (m *Manager) remove(key []byte) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	k := string(key)
	delete(m.dirty, k)
	m.deleted[k] = struct{}{}
	return nil
}

func (m *Manager) putRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.put(key, encoded)
}

// getRLP decodes the value stored under key into out and reports whether it
// existed.
func (m *Manager) getRLP(key []byte, out interface{}) (bool, error) {
	data, err := m.get(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// Pending reports the number of journaled writes and deletes.
func (m *Manager) Pending() int {
	if m == nil {
		return 0
	}
	return len(m.dirty) + len(m.deleted)
}

// Commit flushes the journal to storage atomically and resets it.
func (m *Manager) Commit() error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	if m.Pending() == 0 {
		return nil
	}
	batch := storage.NewBatch()
	keys := make([]string, 0, len(m.dirty))
	for k := range m.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		batch.Put([]byte(k), m.dirty[k])
	}
	removed := make([]string, 0, len(m.deleted))
	for k := range m.deleted {
		removed = append(removed, k)
	}
	sort.Strings(removed)
	for _, k := range removed {
		batch.Delete([]byte(k))
	}
	if err := m.db.Write(batch); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.Discard()
	return nil
}

// Discard drops every journaled change.
func (m *Manager) Discard() {
	if m == nil {
		return
	}
	m.dirty = make(map[string][]byte)
	m.deleted = make(map[string]struct{})
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is automatically hashed with keccak256.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.putRLP(kvKey(key), value)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	if out == nil {
		data, err := m.get(kvKey(key))
		return len(data) > 0, err
	}
	return m.getRLP(kvKey(key), out)
}
