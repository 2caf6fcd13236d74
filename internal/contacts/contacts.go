// Package contacts resolves the recipient ids referenced by slingflow
// webhooks. Contact CRUD is owned by another service; this package only
// reads the shared Redis hash it maintains.
package contacts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const hashKey = "tankwatch:contacts"

// Contact is a notification recipient.
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Directory resolves contact ids to contacts.
type Directory interface {
	// Resolve returns the contacts for ids in the same order. If any id is
	// unknown it returns an *UnknownError listing all of them.
	Resolve(ctx context.Context, ids []string) ([]Contact, error)
}

// UnknownError lists contact ids that no longer exist.
type UnknownError struct {
	IDs []string
}

func (e *UnknownError) Error() string {
	return "unknown contacts: " + strings.Join(e.IDs, ", ")
}

// RedisDirectory reads contacts from a Redis hash of id -> JSON document.
type RedisDirectory struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *RedisDirectory {
	return &RedisDirectory{rdb: rdb}
}

// Resolve looks up every id with a single HMGET.
func (d *RedisDirectory) Resolve(ctx context.Context, ids []string) ([]Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	vals, err := d.rdb.HMGet(ctx, hashKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HMGet: %w", err)
	}
	out := make([]Contact, 0, len(ids))
	var missing []string
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var c Contact
		if err := json.Unmarshal([]byte(s), &c); err != nil {
			return nil, fmt.Errorf("decode contact %s: %w", ids[i], err)
		}
		if c.ID == "" {
			c.ID = ids[i]
		}
		out = append(out, c)
	}
	if len(missing) > 0 {
		return nil, &UnknownError{IDs: missing}
	}
	return out, nil
}

// Put stores or replaces a contact.
func (d *RedisDirectory) Put(ctx context.Context, c Contact) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal contact: %w", err)
	}
	return d.rdb.HSet(ctx, hashKey, c.ID, b).Err()
}

// Delete removes a contact.
func (d *RedisDirectory) Delete(ctx context.Context, id string) error {
	return d.rdb.HDel(ctx, hashKey, id).Err()
}
