package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces interview sessions in a shared Redis.
const DefaultKeyPrefix = "interview:"

// RedisStore implements Store on Redis. Each session is one JSON value
// written with SET EX; the compare-and-set in Put runs as a WATCH
// transaction on the record's sequence number.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. An empty prefix falls back to
// DefaultKeyPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}

	var s Session
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, &StorageError{Op: "get", Err: fmt.Errorf("decode record: %w", err)}
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, id string, s *Session, expectedSeq uint64, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return &StorageError{Op: "put", Err: fmt.Errorf("encode record: %w", err)}
	}

	key := r.key(id)
	txn := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if expectedSeq != 0 {
				return ErrNotFound
			}
		case err != nil:
			return &StorageError{Op: "put", Err: err}
		default:
			if expectedSeq == 0 {
				return ErrConflict
			}
			var existing Session
			if err := json.Unmarshal(cur, &existing); err != nil {
				return &StorageError{Op: "put", Err: fmt.Errorf("decode record: %w", err)}
			}
			if existing.Seq != expectedSeq {
				return ErrConflict
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}

	err = r.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		// The key changed between WATCH and EXEC.
		return ErrConflict
	}
	if err != nil {
		var se *StorageError
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.As(err, &se) {
			return err
		}
		return &StorageError{Op: "put", Err: err}
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	return nil
}

func (r *RedisStore) Extend(ctx context.Context, id string, ttl time.Duration) error {
	ok, err := r.client.Expire(ctx, r.key(id), ttl).Result()
	if err != nil {
		return &StorageError{Op: "extend", Err: err}
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
