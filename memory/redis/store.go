// Package redis provides a core.Memory backed by Redis. Scalars and mappings
// are stored as JSON strings; sequences are stored as Redis lists so that
// appends and history trimming happen server side.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/memory"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "agentkernel"

// Options configures a Store.
type Options struct {
	// Prefix is prepended to every key as "<prefix>:<agent-id>:<key>".
	Prefix string
	// TTL expires keys after the given duration. Zero keeps them forever;
	// cleanup of a finished agent's memory is the embedder's responsibility.
	TTL time.Duration
}

// Store is a Memory scope for one agent.
type Store struct {
	client  goredis.UniversalClient
	agentID string
	opts    Options
}

var (
	_ core.Memory          = (*Store)(nil)
	_ core.SequenceTrimmer = (*Store)(nil)
)

// NewStore creates a Store scoped to agentID.
func NewStore(client goredis.UniversalClient, agentID string, optFns ...func(o *Options)) *Store {
	opts := Options{Prefix: DefaultPrefix}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Store{client: client, agentID: agentID, opts: opts}
}

// Provider returns a memory.Provider handing out one Store per agent.
func Provider(client goredis.UniversalClient, optFns ...func(o *Options)) memory.Provider {
	return func(agentID string) core.Memory {
		return NewStore(client, agentID, optFns...)
	}
}

// NewClient parses a redis:// URL and returns a client.
func NewClient(url string) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return goredis.NewClient(opt), nil
}

// MustClient is like NewClient but panics on error.
func MustClient(url string) *goredis.Client {
	c, err := NewClient(url)
	if err != nil {
		panic(err)
	}
	return c
}

func (s *Store) key(k string) string {
	return s.opts.Prefix + ":" + s.agentID + ":" + k
}

// Get returns the decoded value for key or def when absent.
func (s *Store) Get(ctx context.Context, key string, def any) (any, error) {
	k := s.key(key)

	typ, err := s.client.Type(ctx, k).Result()
	if err != nil {
		return nil, fmt.Errorf("redis type %s: %w", key, err)
	}

	switch typ {
	case "none":
		return def, nil
	case "list":
		raw, err := s.client.LRange(ctx, k, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lrange %s: %w", key, err)
		}

		seq := make([]any, 0, len(raw))
		for _, item := range raw {
			v, err := decode([]byte(item))
			if err != nil {
				return nil, fmt.Errorf("decode %s item: %w", key, err)
			}
			seq = append(seq, v)
		}

		return seq, nil
	case "string":
		raw, err := s.client.Get(ctx, k).Bytes()
		if errors.Is(err, goredis.Nil) {
			return def, nil
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", key, err)
		}

		return decode(raw)
	default:
		return nil, fmt.Errorf("redis key %s has unsupported type %q", key, typ)
	}
}

// Set overwrites key. Slices are stored as lists, everything else as JSON.
// Redis has no empty list, so an empty slice is stored as the JSON string
// "[]" and still reads back as an empty sequence.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	k := s.key(key)

	if !isSequence(value) {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		return s.client.Set(ctx, k, data, s.opts.TTL).Err()
	}

	items, err := encodeItems(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, k)
		if len(items) == 0 {
			p.Set(ctx, k, emptySequence, s.opts.TTL)
			return nil
		}
		p.RPush(ctx, k, items...)
		s.expire(ctx, p, k)
		return nil
	})

	return err
}

// AppendToSequence pushes value onto the list under key, replacing a
// non-list value first.
func (s *Store) AppendToSequence(ctx context.Context, key string, value any) error {
	k := s.key(key)

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s item: %w", key, err)
	}

	typ, err := s.client.Type(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("redis type %s: %w", key, err)
	}

	_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		if typ != "list" && typ != "none" {
			p.Del(ctx, k)
		}
		p.RPush(ctx, k, data)
		s.expire(ctx, p, k)
		return nil
	})

	return err
}

// TrimSequence keeps the last keepLast items of the list under key. Keys
// that do not hold a list are left untouched.
func (s *Store) TrimSequence(ctx context.Context, key string, keepLast int) error {
	k := s.key(key)

	typ, err := s.client.Type(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("redis type %s: %w", key, err)
	}

	if typ != "list" {
		return nil
	}

	if keepLast <= 0 {
		return s.client.Set(ctx, k, emptySequence, s.opts.TTL).Err()
	}

	return s.client.LTrim(ctx, k, int64(-keepLast), -1).Err()
}

const emptySequence = "[]"

func (s *Store) expire(ctx context.Context, p goredis.Pipeliner, k string) {
	if s.opts.TTL > 0 {
		p.Expire(ctx, k, s.opts.TTL)
	}
}

func decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func isSequence(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	switch t.Kind() {
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	default:
		return false
	}
}

func encodeItems(v any) ([]any, error) {
	rv := reflect.ValueOf(v)
	items := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		data, err := json.Marshal(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		items = append(items, data)
	}
	return items, nil
}
