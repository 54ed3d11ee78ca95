package association

import (
	"KeeBridge/internal/crypto"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
)

// RecordPrefix — префикс имени записи, хранящей ключ клиента.
const RecordPrefix = "AES Key: "

// ErrNotFound — клиент с таким идентификатором не ассоциирован.
var ErrNotFound = errors.New("association not found")

// RecordStore — долговременное хранилище именованных строковых записей.
type RecordStore interface {
	GetRecord(ctx context.Context, name string) (value string, ok bool, err error)
	PutRecord(ctx context.Context, name, value string) error
}

// Notifier получает уведомление об изменении хранилища.
type Notifier interface {
	Notify(msg string)
}

// Store — таблица ассоциаций clientId → общий ключ.
// Все операции сериализованы одной блокировкой.
type Store struct {
	mu       sync.Mutex
	records  RecordStore
	notifier Notifier
}

// NewStore создаёт хранилище ассоциаций поверх records. notifier может быть nil.
func NewStore(records RecordStore, notifier Notifier) *Store {
	return &Store{records: records, notifier: notifier}
}

// Lookup возвращает общий ключ клиента или ErrNotFound.
func (s *Store) Lookup(ctx context.Context, clientID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok, err := s.records.GetRecord(ctx, RecordPrefix+clientID)
	if err != nil {
		return nil, fmt.Errorf("lookup association: %w", err)
	}
	if !ok || value == "" {
		return nil, ErrNotFound
	}
	key, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(key) != crypto.KeySize {
		// испорченная запись эквивалентна отсутствующей
		return nil, ErrNotFound
	}
	return key, nil
}

// Associate сохраняет ключ клиента, перезаписывая прежний.
func (s *Store) Associate(ctx context.Context, clientID string, key []byte) error {
	if clientID == "" {
		return errors.New("empty client id")
	}
	if len(key) != crypto.KeySize {
		return fmt.Errorf("%w: invalid key size %d", crypto.ErrCrypto, len(key))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.records.PutRecord(ctx, RecordPrefix+clientID, base64.StdEncoding.EncodeToString(key)); err != nil {
		return fmt.Errorf("store association: %w", err)
	}
	if s.notifier != nil {
		s.notifier.Notify(fmt.Sprintf("New client associated: %s", clientID))
	}
	return nil
}

// MemoryRecords — RecordStore в памяти.
type MemoryRecords struct {
	mu      sync.RWMutex
	records map[string]string
}

// NewMemoryRecords создаёт пустое хранилище записей в памяти.
func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{records: make(map[string]string)}
}

func (m *MemoryRecords) GetRecord(_ context.Context, name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.records[name]
	return v, ok, nil
}

func (m *MemoryRecords) PutRecord(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[name] = value
	return nil
}
