package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/victortong-git/opensoc-sub009/internal/db"
)

// putCappedScript sets KEYS[1], moves it to the tail of the order list
// KEYS[2] and deletes the oldest members beyond ARGV[3]. The order list
// expires with the newest entry. Returns the number of evicted keys.
var putCappedScript = rueidis.NewLuaScript(`
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
redis.call('LREM', KEYS[2], 0, KEYS[1])
local n = redis.call('RPUSH', KEYS[2], KEYS[1])
local capacity = tonumber(ARGV[3])
local evicted = 0
while n > capacity do
  local oldest = redis.call('LPOP', KEYS[2])
  if not oldest then break end
  redis.call('DEL', oldest)
  evicted = evicted + 1
  n = n - 1
end
redis.call('PEXPIRE', KEYS[2], ARGV[2])
return evicted
`)

// PutCapped runs SET, reorder and evict as one server-side script so
// concurrent writers cannot leave duplicate or stale order entries.
func (s *Store) PutCapped(
	ctx context.Context, key string, value []byte, ttl time.Duration, orderKey string, capacity int,
) (int64, error) {
	ms := max(ttl.Milliseconds(), 1)
	n, err := putCappedScript.Exec(ctx, s.client,
		[]string{key, orderKey},
		[]string{rueidis.BinaryString(value), strconv.FormatInt(ms, 10), strconv.Itoa(capacity)},
	).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpEval, Err: err}
	}
	return n, nil
}

// LRem drops every occurrence of value.
func (s *Store) LRem(ctx context.Context, key, value string) error {
	if err := s.client.Do(ctx, s.client.B().Lrem().Key(key).Count(0).Element(value).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpLRem, Err: err}
	}
	return nil
}
