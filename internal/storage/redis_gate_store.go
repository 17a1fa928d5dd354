package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/annel0/mmo-gates/internal/logging"
	"github.com/annel0/mmo-gates/internal/portal"
	"github.com/go-redis/redis/v8"
)

var logger = logging.GetComponentLogger("storage")

// DefaultRedisHash ключ хэша, в котором лежат записи врат
const DefaultRedisHash = "gates:records"

// RedisConfig параметры подключения к Redis
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Hash     string // по умолчанию DefaultRedisHash
}

// RedisGateStore хранит записи врат в одном хэше Redis (поле = ID врат).
// Подходит, когда несколько процессов делят одно хранилище.
type RedisGateStore struct {
	client *redis.Client
	hash   string
}

// NewRedisGateStore подключается к Redis и проверяет соединение
func NewRedisGateStore(cfg RedisConfig) (*RedisGateStore, error) {
	if cfg.Hash == "" {
		cfg.Hash = DefaultRedisHash
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		MaxRetries:   1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("🗄️ Хранилище врат в Redis: %s (hash %s)", cfg.Addr, cfg.Hash)
	return &RedisGateStore{client: rdb, hash: cfg.Hash}, nil
}

// Close закрывает соединение
func (rs *RedisGateStore) Close() error {
	return rs.client.Close()
}

// Save сохраняет запись врат
func (rs *RedisGateStore) Save(ctx context.Context, rec portal.Record) error {
	if rec.ID == "" {
		return errors.New("пустой ID врат")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ошибка сериализации врат %s: %w", rec.ID, err)
	}
	if err := rs.client.HSet(ctx, rs.hash, rec.ID, data).Err(); err != nil {
		return fmt.Errorf("ошибка сохранения в Redis: %w", err)
	}
	return nil
}

// Delete удаляет запись. Отсутствующая запись не является ошибкой.
func (rs *RedisGateStore) Delete(ctx context.Context, id string) error {
	if err := rs.client.HDel(ctx, rs.hash, id).Err(); err != nil {
		return fmt.Errorf("ошибка удаления врат %s: %w", id, err)
	}
	return nil
}

// List возвращает все записи, упорядоченные по ID
func (rs *RedisGateStore) List(ctx context.Context) ([]portal.Record, error) {
	fields, err := rs.client.HGetAll(ctx, rs.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения записей врат: %w", err)
	}
	return decodeRecords(fields)
}

// decodeRecords разбирает поля хэша в записи
func decodeRecords(fields map[string]string) ([]portal.Record, error) {
	records := make([]portal.Record, 0, len(fields))
	for id, raw := range fields {
		var rec portal.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("повреждённая запись %s: %w", id, err)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}
