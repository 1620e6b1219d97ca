package storage

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"CollabBoard/internal/state"
)

// RedisStore keeps each room as a redis list of JSON entries under
// prefix+roomID. Save only pushes the entries the list does not hold yet,
// which matches the append-only log.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// DialRedis connects to addr and checks the server answers.
func DialRedis(ctx context.Context, addr, prefix string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrapf(err, "connecting to redis at %s", addr)
	}
	return NewRedisStore(rdb, prefix), nil
}

func (r *RedisStore) key(roomID string) string { return r.prefix + roomID }

func (r *RedisStore) Load(ctx context.Context, roomID string) ([]state.LogEntry, error) {
	raw, err := r.rdb.LRange(ctx, r.key(roomID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "loading room %s", roomID)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}
	entries := make([]state.LogEntry, 0, len(raw))
	for i, item := range raw {
		var e state.LogEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, errors.Wrapf(err, "decoding room %s entry %d", roomID, i)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *RedisStore) Save(ctx context.Context, roomID string, entries []state.LogEntry) error {
	key := r.key(roomID)
	stored, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		return errors.Wrapf(err, "saving room %s", roomID)
	}
	if stored > int64(len(entries)) {
		// The list is ahead of the log handed in; start over.
		if err := r.rdb.Del(ctx, key).Err(); err != nil {
			return errors.Wrapf(err, "resetting room %s", roomID)
		}
		stored = 0
	}
	pending := entries[stored:]
	if len(pending) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(pending))
	for _, e := range pending {
		data, err := json.Marshal(e)
		if err != nil {
			return errors.Wrapf(err, "encoding room %s seq %d", roomID, e.Seq)
		}
		values = append(values, data)
	}
	if err := r.rdb.RPush(ctx, key, values...).Err(); err != nil {
		return errors.Wrapf(err, "saving room %s", roomID)
	}
	return nil
}

func (r *RedisStore) Close() error { return r.rdb.Close() }
