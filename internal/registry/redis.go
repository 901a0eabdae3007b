package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inaiurai/whitelist/internal/errs"
)

const defaultRedisPrefix = "wl:"

// KEYS: entry hash, region set, uid set, regions index.
// ARGV: uid, region, now (unix seconds), duration (seconds), policy.
var upsertScript = redis.NewScript(`
local now = tonumber(ARGV[3])
local duration = tonumber(ARGV[4])
local expiry = now + duration

if ARGV[5] == "extend" then
  local current = redis.call("HGET", KEYS[1], "expires_at")
  if current then
    current = tonumber(current)
    if current > now then
      expiry = current + duration
    end
  end
end

redis.call("HSET", KEYS[1], "uid", ARGV[1], "region", ARGV[2], "expires_at", string.format("%d", expiry))
redis.call("SADD", KEYS[2], ARGV[1])
redis.call("SADD", KEYS[3], ARGV[2])
redis.call("SADD", KEYS[4], ARGV[2])
return expiry
`)

// KEYS: entry hash, region set, uid set, regions index.
// ARGV: uid, region.
var removeScript = redis.NewScript(`
local removed = redis.call("DEL", KEYS[1])
if removed == 1 then
  redis.call("SREM", KEYS[2], ARGV[1])
  redis.call("SREM", KEYS[3], ARGV[2])
  if redis.call("SCARD", KEYS[2]) == 0 then
    redis.call("SREM", KEYS[4], ARGV[2])
  end
end
return removed
`)

// RedisStore keeps one hash per entry plus membership sets for listing.
// Upsert and remove run as Lua scripts so each is atomic per key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) entryKey(uid, region string) string {
	return s.prefix + "entry:" + region + ":" + uid
}

func (s *RedisStore) regionKey(region string) string { return s.prefix + "region:" + region }
func (s *RedisStore) uidKey(uid string) string       { return s.prefix + "uid:" + uid }
func (s *RedisStore) regionsKey() string             { return s.prefix + "regions" }

func (s *RedisStore) keys(uid, region string) []string {
	return []string{s.entryKey(uid, region), s.regionKey(region), s.uidKey(uid), s.regionsKey()}
}

func (s *RedisStore) Upsert(ctx context.Context, p UpsertParams) (Record, error) {
	secs := int64(p.Duration / time.Second)
	if secs <= 0 {
		return Record{}, fmt.Errorf("invalid duration %s", p.Duration)
	}
	res, err := upsertScript.Run(ctx, s.client, s.keys(p.UID, p.Region),
		p.UID, p.Region, p.Now.Unix(), secs, string(p.Policy)).Int64()
	if err != nil {
		return Record{}, fmt.Errorf("upsert whitelist entry: %w", err)
	}
	return Record{UID: p.UID, Region: p.Region, ExpiresAt: time.Unix(res, 0).UTC()}, nil
}

func (s *RedisStore) Delete(ctx context.Context, uid, region string) (bool, error) {
	n, err := removeScript.Run(ctx, s.client, s.keys(uid, region), uid, region).Int64()
	if err != nil {
		return false, fmt.Errorf("delete whitelist entry: %w", err)
	}
	return n == 1, nil
}

func (s *RedisStore) Get(ctx context.Context, uid, region string) (Record, error) {
	raw, err := s.client.HGet(ctx, s.entryKey(uid, region), "expires_at").Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, errs.ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return parseRecord(uid, region, raw)
}

func (s *RedisStore) List(ctx context.Context, region string) ([]Record, error) {
	regions := []string{region}
	if region == "" {
		var err error
		regions, err = s.client.SMembers(ctx, s.regionsKey()).Result()
		if err != nil {
			return nil, err
		}
	}
	var keys []Key
	for _, reg := range regions {
		uids, err := s.client.SMembers(ctx, s.regionKey(reg)).Result()
		if err != nil {
			return nil, err
		}
		for _, uid := range uids {
			keys = append(keys, Key{UID: uid, Region: reg})
		}
	}
	return s.load(ctx, keys)
}

func (s *RedisStore) ListByUID(ctx context.Context, uid string) ([]Record, error) {
	regions, err := s.client.SMembers(ctx, s.uidKey(uid)).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]Key, 0, len(regions))
	for _, reg := range regions {
		keys = append(keys, Key{UID: uid, Region: reg})
	}
	return s.load(ctx, keys)
}

// load fetches expiries in one pipeline. Keys removed between the set read and
// the fetch are skipped.
func (s *RedisStore) load(ctx context.Context, keys []Key) ([]Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGet(ctx, s.entryKey(k.UID, k.Region), "expires_at")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	out := make([]Record, 0, len(keys))
	for i, cmd := range cmds {
		raw, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rec, err := parseRecord(keys[i].UID, keys[i].Region, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRecord(uid, region, raw string) (Record, error) {
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse expiry for %s/%s: %w", region, uid, err)
	}
	return Record{UID: uid, Region: region, ExpiresAt: time.Unix(secs, 0).UTC()}, nil
}
