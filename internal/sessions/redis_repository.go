package sessions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
)

// RedisRepository implements Repository with Redis as the backing
// store. Layout:
//
//	<prefix><token>      JSON session, TTL = expiresAt - now
//	<prefix>id:<id>      token, same TTL (id -> token indirection)
//	<prefix>user:<uid>   set of the user's tokens (cleaned lazily)
//
// Redis key TTLs mirror the session expiry, so expired sessions
// disappear on their own; DeleteExpired is therefore a no-op here.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a Redis-based session repository. Prefix may be empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) tokenKey(token string) string { return r.prefix + token }
func (r *RedisRepository) idKey(id string) string       { return r.prefix + "id:" + id }
func (r *RedisRepository) userKey(userID string) string { return r.prefix + "user:" + userID }

func (r *RedisRepository) ttl(s *Session) time.Duration {
	exp := time.Until(s.ExpiresAt)
	if exp <= 0 {
		// minimal TTL so Redis never stores an already-expired session
		exp = time.Second
	}
	return exp
}

// redisSession is the stored form. The API projection of Session omits
// the token, but the store has to round-trip it.
type redisSession struct {
	Session
	Token string `json:"token"`
}

func encodeSession(s *Session) ([]byte, error) {
	return json.Marshal(redisSession{Session: *s, Token: s.Token})
}

func decodeSession(b []byte) (*Session, error) {
	var rs redisSession
	if err := json.Unmarshal(b, &rs); err != nil {
		return nil, err
	}
	rs.Session.Token = rs.Token
	return &rs.Session, nil
}

func (r *RedisRepository) write(ctx context.Context, s *Session) error {
	b, err := encodeSession(s)
	if err != nil {
		return apperr.Unavailable(err, "encode session")
	}
	ttl := r.ttl(s)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.tokenKey(s.Token), b, ttl)
	pipe.Set(ctx, r.idKey(s.ID), s.Token, ttl)
	pipe.SAdd(ctx, r.userKey(s.UserID), s.Token)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Unavailable(err, "write session")
	}
	return nil
}

func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	now := time.Now().UTC()
	if s.ID == "" {
		s.ID = newSessionID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.LastActivity.IsZero() {
		s.LastActivity = now
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = now.Add(SessionTTL)
	}
	// store-level token uniqueness: SetNX on the token key
	b, err := encodeSession(s)
	if err != nil {
		return apperr.Unavailable(err, "encode session")
	}
	ok, err := r.client.SetNX(ctx, r.tokenKey(s.Token), b, r.ttl(s)).Result()
	if err != nil {
		return apperr.Unavailable(err, "create session")
	}
	if !ok {
		return apperr.Conflict("session token already exists")
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.idKey(s.ID), s.Token, r.ttl(s))
	pipe.SAdd(ctx, r.userKey(s.UserID), s.Token)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Unavailable(err, "index session")
	}
	return nil
}

func (r *RedisRepository) GetByToken(ctx context.Context, token string) (*Session, error) {
	b, err := r.client.Get(ctx, r.tokenKey(token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, apperr.Unavailable(err, "get session")
	}
	s, err := decodeSession(b)
	if err != nil {
		return nil, apperr.Unavailable(err, "decode session")
	}
	// treat a stored-but-expired value as missing
	if !s.Usable(time.Now().UTC()) {
		_ = r.DeleteByToken(ctx, token)
		return nil, nil
	}
	return s, nil
}

func (r *RedisRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	token, err := r.client.Get(ctx, r.idKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, apperr.Unavailable(err, "get session by id")
	}
	return r.GetByToken(ctx, token)
}

func (r *RedisRepository) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	tokens, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, apperr.Unavailable(err, "list user sessions")
	}
	out := make([]Session, 0, len(tokens))
	for _, token := range tokens {
		s, err := r.GetByToken(ctx, token)
		if err != nil {
			return nil, err
		}
		if s == nil {
			// token expired out of Redis; prune the index entry
			_ = r.client.SRem(ctx, r.userKey(userID), token).Err()
			continue
		}
		out = append(out, *s)
	}
	sortByLastActivityDesc(out)
	return out, nil
}

func (r *RedisRepository) UpdateActivity(ctx context.Context, id string, lastActivity time.Time, expiresAt *time.Time) error {
	s, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	s.LastActivity = lastActivity
	if expiresAt != nil {
		s.ExpiresAt = *expiresAt
	}
	return r.write(ctx, s)
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	token, err := r.client.Get(ctx, r.idKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return apperr.Unavailable(err, "delete session")
	}
	return r.DeleteByToken(ctx, token)
}

func (r *RedisRepository) DeleteByToken(ctx context.Context, token string) error {
	b, err := r.client.Get(ctx, r.tokenKey(token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return apperr.Unavailable(err, "delete session by token")
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.tokenKey(token))
	if s, derr := decodeSession(b); derr == nil {
		pipe.Del(ctx, r.idKey(s.ID))
		pipe.SRem(ctx, r.userKey(s.UserID), token)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Unavailable(err, "delete session by token")
	}
	return nil
}

func (r *RedisRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tokens, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return 0, apperr.Unavailable(err, "delete sessions by user")
	}
	var deleted int64
	for _, token := range tokens {
		if exists, err := r.client.Exists(ctx, r.tokenKey(token)).Result(); err == nil && exists > 0 {
			deleted++
		}
		if err := r.DeleteByToken(ctx, token); err != nil {
			return deleted, err
		}
	}
	if err := r.client.Del(ctx, r.userKey(userID)).Err(); err != nil {
		return deleted, apperr.Unavailable(err, "delete user session index")
	}
	return deleted, nil
}

// DeleteExpired is a no-op: key TTLs already reclaim expired sessions.
func (r *RedisRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
