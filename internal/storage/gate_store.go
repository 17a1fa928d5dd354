package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/mmo-gates/internal/portal"
	"github.com/dgraph-io/badger/v3"
)

// keyPrefix префикс ключей записей врат
const keyPrefix = "gate:"

// ErrNotReady хранилище закрыто
var ErrNotReady = errors.New("gate store is not ready")

// GateStore хранит записи врат в BadgerDB. Реализует portal.Store.
type GateStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewGateStore открывает (или создаёт) хранилище в каталоге dataPath
func NewGateStore(dataPath string) (*GateStore, error) {
	opts := badger.DefaultOptions(dataPath)
	opts.Logger = nil // Отключаем логирование BadgerDB
	return open(opts)
}

// NewInMemoryGateStore создаёт хранилище без файлов (для тестов и демо)
func NewInMemoryGateStore() (*GateStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*GateStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	return &GateStore{db: db, dbPath: opts.Dir, isReady: true}, nil
}

// Close закрывает хранилище
func (gs *GateStore) Close() error {
	gs.mutex.Lock()
	defer gs.mutex.Unlock()

	if !gs.isReady {
		return nil
	}
	gs.isReady = false
	return gs.db.Close()
}

func gateKey(id string) []byte {
	return []byte(keyPrefix + id)
}

// Save сохраняет запись врат
func (gs *GateStore) Save(ctx context.Context, rec portal.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return errors.New("пустой ID врат")
	}

	gs.mutex.RLock()
	defer gs.mutex.RUnlock()
	if !gs.isReady {
		return ErrNotReady
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ошибка сериализации врат %s: %w", rec.ID, err)
	}

	err = gs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(gateKey(rec.ID), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Load загружает запись по ID
func (gs *GateStore) Load(ctx context.Context, id string) (portal.Record, bool, error) {
	var rec portal.Record
	if err := ctx.Err(); err != nil {
		return rec, false, err
	}

	gs.mutex.RLock()
	defer gs.mutex.RUnlock()
	if !gs.isReady {
		return rec, false, ErrNotReady
	}

	err := gs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(gateKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("ошибка чтения врат %s: %w", id, err)
	}
	return rec, true, nil
}

// Delete удаляет запись. Отсутствующая запись не является ошибкой.
func (gs *GateStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gs.mutex.RLock()
	defer gs.mutex.RUnlock()
	if !gs.isReady {
		return ErrNotReady
	}

	err := gs.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(gateKey(id))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления врат %s: %w", id, err)
	}
	return nil
}

// List возвращает все записи, упорядоченные по ID
func (gs *GateStore) List(ctx context.Context) ([]portal.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gs.mutex.RLock()
	defer gs.mutex.RUnlock()
	if !gs.isReady {
		return nil, ErrNotReady
	}

	var records []portal.Record
	err := gs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var rec portal.Record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("повреждённая запись %s: %w", item.Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Count возвращает количество записей
func (gs *GateStore) Count(ctx context.Context) (int, error) {
	records, err := gs.List(ctx)
	return len(records), err
}
