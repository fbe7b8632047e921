package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis.
//
// Layout, all under a configurable prefix:
//
//	<p>rt:<digest>     hash {id, owner, exp, rev, created} (ms timestamps)
//	<p>rt:id:<id>      string -> digest
//	<p>owner:<owner>   set of digests
//	<p>rt:expiry       zset digest -> exp
//
// Every mutation is a single Lua script, so it applies fully or not at all.
// Scripts build keys from the prefix at run time, which ties the store to a
// single Redis node (not Cluster).
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the key namespace (default "authcore:").
func WithKeyPrefix(p string) RedisOption {
	return func(s *RedisStore) { s.prefix = p }
}

func NewRedisStore(rdb redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{rdb: rdb, prefix: "authcore:"}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	return s
}

func (s *RedisStore) recordKey(digest string) string { return s.prefix + "rt:" + digest }
func (s *RedisStore) ownerKey(owner string) string   { return s.prefix + "owner:" + owner }

// Shared by create and replace: writes a fresh record for ARGV[2..6].
const luaInsert = `
local p = ARGV[1]
local digest, id, owner, exp, created = ARGV[2], ARGV[3], ARGV[4], ARGV[5], ARGV[6]
redis.call('HSET', p .. 'rt:' .. digest, 'id', id, 'owner', owner, 'exp', exp, 'rev', '0', 'created', created)
redis.call('SET', p .. 'rt:id:' .. id, digest)
redis.call('SADD', p .. 'owner:' .. owner, digest)
redis.call('ZADD', p .. 'rt:expiry', exp, digest)
`

var (
	createScript = redis.NewScript(`
if redis.call('EXISTS', ARGV[1] .. 'rt:' .. ARGV[2]) == 1 then
  return 0
end
` + luaInsert + `
return 1
`)

	revokeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  redis.call('HSET', KEYS[1], 'rev', '1')
end
return 0
`)

	revokeAllScript = redis.NewScript(`
local p = ARGV[1]
local digests = redis.call('SMEMBERS', KEYS[1])
for _, d in ipairs(digests) do
  local k = p .. 'rt:' .. d
  if redis.call('EXISTS', k) == 1 then
    redis.call('HSET', k, 'rev', '1')
  else
    redis.call('SREM', KEYS[1], d)
  end
end
return #digests
`)

	revokeByIDScript = redis.NewScript(`
local p = ARGV[1]
local digest = redis.call('GET', p .. 'rt:id:' .. ARGV[2])
if not digest then
  return 0
end
local k = p .. 'rt:' .. digest
if redis.call('HGET', k, 'owner') ~= ARGV[3] then
  return 0
end
redis.call('HSET', k, 'rev', '1')
return 1
`)

	sweepScript = redis.NewScript(`
local p = ARGV[1]
local zkey = p .. 'rt:expiry'
local digests = redis.call('ZRANGEBYSCORE', zkey, '-inf', ARGV[2])
for _, d in ipairs(digests) do
  local k = p .. 'rt:' .. d
  local fields = redis.call('HMGET', k, 'id', 'owner')
  if fields[1] then
    redis.call('DEL', p .. 'rt:id:' .. fields[1])
  end
  if fields[2] then
    redis.call('SREM', p .. 'owner:' .. fields[2], d)
  end
  redis.call('DEL', k)
  redis.call('ZREM', zkey, d)
end
return #digests
`)

	replaceScript = redis.NewScript(`
local old = ARGV[1] .. 'rt:' .. ARGV[7]
if redis.call('HGET', old, 'rev') ~= '0' then
  return 0
end
if redis.call('EXISTS', ARGV[1] .. 'rt:' .. ARGV[2]) == 1 then
  return -1
end
redis.call('HSET', old, 'rev', '1')
` + luaInsert + `
return 1
`)
)

func (s *RedisStore) insertArgs(rec Record) []any {
	return []any{
		s.prefix,
		rec.TokenDigest,
		rec.ID,
		rec.OwnerID,
		rec.ExpiresAt.UnixMilli(),
		rec.CreatedAt.UnixMilli(),
	}
}

func (s *RedisStore) Create(ctx context.Context, in NewRecord) (Record, error) {
	rec, err := newRecord(truncateMillis(in))
	if err != nil {
		return Record{}, err
	}

	n, err := createScript.Run(ctx, s.rdb, nil, s.insertArgs(rec)...).Int64()
	if err != nil {
		return Record{}, err
	}
	if n == 0 {
		return Record{}, ErrDuplicateDigest
	}
	return rec, nil
}

func (s *RedisStore) FindByDigest(ctx context.Context, digest string) (Record, error) {
	fields, err := s.rdb.HGetAll(ctx, s.recordKey(digest)).Result()
	if err != nil {
		return Record{}, err
	}
	if len(fields) == 0 {
		return Record{}, ErrRecordNotFound
	}
	return parseRedisRecord(digest, fields)
}

func (s *RedisStore) Revoke(ctx context.Context, digest string) error {
	return revokeScript.Run(ctx, s.rdb, []string{s.recordKey(digest)}).Err()
}

func (s *RedisStore) RevokeAllForOwner(ctx context.Context, ownerID string) error {
	return revokeAllScript.Run(ctx, s.rdb, []string{s.ownerKey(ownerID)}, s.prefix).Err()
}

func (s *RedisStore) RevokeByID(ctx context.Context, ownerID, id string) (bool, error) {
	n, err := revokeByIDScript.Run(ctx, s.rdb, nil, s.prefix, id, ownerID).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisStore) ListActiveForOwner(ctx context.Context, ownerID string, now time.Time) ([]Record, error) {
	digests, err := s.rdb.SMembers(ctx, s.ownerKey(ownerID)).Result()
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.MapStringStringCmd, len(digests))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, d := range digests {
			cmds[i] = pipe.HGetAll(ctx, s.recordKey(d))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := []Record{}
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Swept between SMEMBERS and HGETALL.
			continue
		}
		rec, err := parseRedisRecord(digests[i], fields)
		if err != nil {
			return nil, err
		}
		if rec.Active(now) {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *RedisStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return sweepScript.Run(ctx, s.rdb, nil, s.prefix, now.UnixMilli()).Int64()
}

func (s *RedisStore) Replace(ctx context.Context, oldDigest string, in NewRecord) (Record, error) {
	rec, err := newRecord(truncateMillis(in))
	if err != nil {
		return Record{}, err
	}

	args := append(s.insertArgs(rec), oldDigest)
	n, err := replaceScript.Run(ctx, s.rdb, nil, args...).Int64()
	if err != nil {
		return Record{}, err
	}
	switch n {
	case 0:
		return Record{}, ErrRecordNotFound
	case -1:
		return Record{}, ErrDuplicateDigest
	}
	return rec, nil
}

var errCorruptRecord = errors.New("session: corrupt redis record")

func parseRedisRecord(digest string, f map[string]string) (Record, error) {
	exp, err := strconv.ParseInt(f["exp"], 10, 64)
	if err != nil {
		return Record{}, errCorruptRecord
	}
	created, err := strconv.ParseInt(f["created"], 10, 64)
	if err != nil {
		return Record{}, errCorruptRecord
	}
	return Record{
		ID:          f["id"],
		OwnerID:     f["owner"],
		TokenDigest: digest,
		ExpiresAt:   time.UnixMilli(exp).UTC(),
		Revoked:     f["rev"] == "1",
		CreatedAt:   time.UnixMilli(created).UTC(),
	}, nil
}
