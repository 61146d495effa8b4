// Package redisboard keeps the leaderboard and delivery dedupe markers in
// Redis so several API replicas share one ranking.
package redisboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"donationhub/internal/domain"
)

const defaultPrefix = "donationhub:"

// totalScale is the number of decimal places kept in the integer total.
// Amounts are stored as total * 10^totalScale so HINCRBY keeps them exact.
const totalScale = 4

// ErrAmountPrecision is returned for amounts the integer total cannot hold
// exactly.
var ErrAmountPrecision = errors.New("amount not representable in redis total")

// recordScript folds one donation into the identity's hash and mirrors the
// new total into the ranking sorted set. Totals are integer minor units and
// timestamps unix milliseconds.
var recordScript = redis.NewScript(`
local total = redis.call('HINCRBY', KEYS[2], 'total_minor', ARGV[2])
redis.call('HINCRBY', KEYS[2], 'count', 1)
local last = tonumber(redis.call('HGET', KEYS[2], 'last') or '0')
if tonumber(ARGV[3]) > last then
  redis.call('HSET', KEYS[2], 'last', ARGV[3])
end
redis.call('ZADD', KEYS[1], total, ARGV[1])
return total
`)

// keyspace holds the prefix shared by every key this package writes.
type keyspace struct {
	prefix string
}

// Option configures the key prefix of a Leaderboard or DeliveryGuard.
type Option func(*keyspace)

// WithPrefix namespaces every key written.
func WithPrefix(prefix string) Option {
	return func(k *keyspace) {
		if prefix != "" {
			k.prefix = prefix
		}
	}
}

func newKeyspace(opts []Option) keyspace {
	k := keyspace{prefix: defaultPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(&k)
		}
	}
	return k
}

// Leaderboard implements domain.Leaderboard on a Redis sorted set.
type Leaderboard struct {
	keyspace
	client *redis.Client
}

func New(client *redis.Client, opts ...Option) *Leaderboard {
	return &Leaderboard{keyspace: newKeyspace(opts), client: client}
}

// toMinor converts amount to integer minor units, refusing amounts with more
// than totalScale decimals or outside int64.
func toMinor(amount decimal.Decimal) (int64, error) {
	shifted := amount.Shift(totalScale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d decimals", ErrAmountPrecision, amount, totalScale)
	}
	big := shifted.BigInt()
	if !big.IsInt64() {
		return 0, fmt.Errorf("%w: %s overflows", ErrAmountPrecision, amount)
	}
	return big.Int64(), nil
}

func fromMinor(minor string) (decimal.Decimal, error) {
	n, err := strconv.ParseInt(minor, 10, 64)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.New(n, -totalScale), nil
}

func (l *Leaderboard) rankKey() string { return l.prefix + "leaderboard" }

func (l *Leaderboard) entryKey(identity string) string { return l.prefix + "leaderboard:entry:" + identity }

func (l *Leaderboard) RecordDonation(ctx context.Context, identity string, amount decimal.Decimal, ts time.Time) error {
	if identity == "" {
		return nil
	}
	minor, err := toMinor(amount)
	if err != nil {
		return err
	}
	keys := []string{l.rankKey(), l.entryKey(identity)}
	err = recordScript.Run(ctx, l.client, keys, identity, minor, ts.UnixMilli()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis record donation: %w", err)
	}
	return nil
}

// Top reads the n best scores plus every member tied with the n-th, then
// ranks them in Go so ties resolve by identity ascending.
func (l *Leaderboard) Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		return []domain.LeaderboardEntry{}, nil
	}
	head, err := l.client.ZRevRangeWithScores(ctx, l.rankKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis top: %w", err)
	}
	if len(head) == 0 {
		return []domain.LeaderboardEntry{}, nil
	}

	members := make([]string, 0, len(head))
	for _, z := range head {
		members = append(members, z.Member.(string))
	}
	if len(head) == n {
		cutoff := strconv.FormatFloat(head[len(head)-1].Score, 'f', -1, 64)
		members, err = l.client.ZRangeByScore(ctx, l.rankKey(), &redis.ZRangeBy{Min: cutoff, Max: "+inf"}).Result()
		if err != nil {
			return nil, fmt.Errorf("redis top ties: %w", err)
		}
	}

	pipe := l.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.HMGet(ctx, l.entryKey(m), "total_minor", "count", "last")
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis top entries: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(members))
	for i, m := range members {
		e, err := parseEntry(m, cmds[i].Val())
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	domain.SortLeaderboard(entries)
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func parseEntry(identity string, vals []any) (domain.LeaderboardEntry, error) {
	e := domain.LeaderboardEntry{Identity: identity}
	if len(vals) != 3 {
		return e, fmt.Errorf("redis entry %q: unexpected field count %d", identity, len(vals))
	}
	if s, ok := vals[0].(string); ok {
		total, err := fromMinor(s)
		if err != nil {
			return e, fmt.Errorf("redis entry %q total: %w", identity, err)
		}
		e.TotalAmount = total
	}
	if s, ok := vals[1].(string); ok {
		count, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return e, fmt.Errorf("redis entry %q count: %w", identity, err)
		}
		e.DonationCount = count
	}
	if s, ok := vals[2].(string); ok {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return e, fmt.Errorf("redis entry %q last: %w", identity, err)
		}
		e.LastDonationAt = time.UnixMilli(ms).UTC()
	}
	return e, nil
}

var _ domain.Leaderboard = (*Leaderboard)(nil)
