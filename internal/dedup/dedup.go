// Package dedup remembers Message-IDs that a run has already turned into
// candidates, so a message whose \Seen flag failed to stick is not
// re-ingested by the next poll or by a second engine sharing the mailbox.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 7 * 24 * time.Hour

	keyPrefix = "internship:seen:"
)

// Checker is what the pipeline needs from a dedup store. Seen only reads;
// Mark is called once the candidate is stored, so a crash in between leaves
// the message retryable.
type Checker interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewFilter(rdb *redis.Client, ttl time.Duration) *Filter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Filter{rdb: rdb, ttl: ttl}
}

// Open connects to url and pings it.
func Open(ctx context.Context, url string, ttl time.Duration) (*Filter, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("dedup redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("dedup redis ping: %w", err)
	}
	return NewFilter(rdb, ttl), nil
}

func key(id string) string {
	return keyPrefix + strings.Trim(strings.TrimSpace(id), "<>")
}

func (f *Filter) Seen(ctx context.Context, id string) (bool, error) {
	n, err := f.rdb.Exists(ctx, key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup EXISTS: %w", err)
	}
	return n > 0, nil
}

// Mark records id for the filter's TTL. An existing mark keeps its expiry.
func (f *Filter) Mark(ctx context.Context, id string) error {
	if err := f.rdb.SetNX(ctx, key(id), 1, f.ttl).Err(); err != nil {
		return fmt.Errorf("dedup SETNX: %w", err)
	}
	return nil
}

func (f *Filter) Close() error { return f.rdb.Close() }
