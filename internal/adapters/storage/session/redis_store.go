package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "studio"

// RedisStore keeps sessions in Redis so several server instances can share
// them. Each session is a JSON value under "<prefix>:sess:<token>" with a
// TTL; "<prefix>:acct:<id>" is a set of the account's tokens.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// deleteScript removes a session and its index entry in one round trip.
var deleteScript = redis.NewScript(`
local existed = redis.call("EXISTS", KEYS[1])
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return existed
`)

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl, now: time.Now}
}

func (rs *RedisStore) key(token string) string {
	return rs.prefix + ":sess:" + token
}

func (rs *RedisStore) accountKey(accountID string) string {
	return rs.prefix + ":acct:" + accountID
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Create stores a new session and returns the token.
// POST: session key expires after ttl; token is indexed under the account
func (rs *RedisStore) Create(ctx context.Context, accountID, email string) (string, Session, error) {
	token, err := newToken()
	if err != nil {
		return "", Session{}, err
	}
	now := rs.now().UTC()
	s := Session{
		AccountID: accountID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(rs.ttl),
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", Session{}, err
	}

	_, err = rs.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rs.key(token), data, rs.ttl)
		pipe.SAdd(ctx, rs.accountKey(accountID), token)
		pipe.Expire(ctx, rs.accountKey(accountID), rs.ttl)
		return nil
	})
	if err != nil {
		return "", Session{}, unavailable(err)
	}
	return token, s, nil
}

// Get retrieves a session by token.
func (rs *RedisStore) Get(ctx context.Context, token string) (Session, error) {
	data, err := rs.rdb.Get(ctx, rs.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, unavailable(err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("corrupt session: %w", err)
	}
	return s, nil
}

// Refresh slides the TTL of a live session and of its account index.
func (rs *RedisStore) Refresh(ctx context.Context, token string) (Session, error) {
	s, err := rs.Get(ctx, token)
	if err != nil {
		return Session{}, err
	}
	s.ExpiresAt = rs.now().UTC().Add(rs.ttl)
	data, err := json.Marshal(s)
	if err != nil {
		return Session{}, err
	}

	var set *redis.BoolCmd
	_, err = rs.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		set = pipe.SetXX(ctx, rs.key(token), data, rs.ttl)
		pipe.Expire(ctx, rs.accountKey(s.AccountID), rs.ttl)
		return nil
	})
	if err != nil {
		return Session{}, unavailable(err)
	}
	if !set.Val() {
		// Expired between the read and the write.
		return Session{}, ErrNotFound
	}
	return s, nil
}

// Delete removes a session. Unknown tokens are ignored.
func (rs *RedisStore) Delete(ctx context.Context, token string) error {
	s, err := rs.Get(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	keys := []string{rs.key(token), rs.accountKey(s.AccountID)}
	if err := deleteScript.Run(ctx, rs.rdb, keys, token).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// DeleteForAccount removes every session indexed under accountID. A session
// created while this runs may survive until it expires.
func (rs *RedisStore) DeleteForAccount(ctx context.Context, accountID string) error {
	tokens, err := rs.rdb.SMembers(ctx, rs.accountKey(accountID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable(err)
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, rs.key(t))
	}
	keys = append(keys, rs.accountKey(accountID))
	if err := rs.rdb.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (rs *RedisStore) Ping(ctx context.Context) error {
	if err := rs.rdb.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
