package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	redis "github.com/redis/go-redis/v9"

	"lakumart/backoffice/internal/domain"
)

// RedisStore reads the offline ledger from a single Redis key holding a JSON
// array of raw records, the same shape devices keep in their on-device
// storage. Devices (or the sync bridge) own the key; this store never writes
// to it.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedis(addr, password string, db int, key string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if key == "" {
		key = "pos:offline-transactions"
	}

	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) List(ctx context.Context) ([]domain.Transaction, int, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return []domain.Transaction{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Decode entry by entry so one corrupt element cannot blank the rest.
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(val), &entries); err != nil {
		log.Printf("[ledger] WARN: offline ledger key %s holds undecodable payload: %v", s.key, err)
		return []domain.Transaction{}, 1, nil
	}

	raws := make([]RawRecord, 0, len(entries))
	skipped := 0
	for i, entry := range entries {
		var raw RawRecord
		if err := json.Unmarshal(entry, &raw); err != nil {
			skipped++
			log.Printf("[ledger] WARN: skipping undecodable offline record #%d: %v", i, err)
			continue
		}
		raws = append(raws, raw)
	}

	transactions, dropped := NormalizeAll(raws, fallbackCashierFromContext(ctx))
	return transactions, skipped + dropped, nil
}
