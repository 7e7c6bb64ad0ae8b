package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/de-tools/cost-watcher/pkg/store/objectstore"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Set holds the keys of files that were fully ingested.
type Set map[string]struct{}

func NewSet(keys ...string) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

func (s Set) Add(key string) {
	s[key] = struct{}{}
}

func (s Set) Remove(key string) {
	delete(s, key)
}

// Keys returns the keys in lexical order.
func (s Set) Keys() []string {
	keys := lo.Keys(s)
	sort.Strings(keys)
	return keys
}

// Ledger persists a Set as one JSON array under a single object key.
// There is no locking: only one watcher may own a ledger key.
type Ledger struct {
	objects objectstore.Store
	key     string
}

func New(objects objectstore.Store, key string) (*Ledger, error) {
	if objects == nil {
		return nil, fmt.Errorf("object store is nil")
	}
	if key == "" {
		return nil, fmt.Errorf("ledger key is required")
	}
	return &Ledger{
		objects: objects,
		key:     key,
	}, nil
}

// Key is the full object key of the snapshot.
func (l *Ledger) Key() string {
	return l.key
}

// Load returns the persisted set, or an empty one when no snapshot exists yet.
func (l *Ledger) Load(ctx context.Context) (Set, error) {
	body, err := l.objects.Get(ctx, l.key)
	if errors.Is(err, objectstore.ErrNotFound) {
		zerolog.Ctx(ctx).Info().Str("key", l.key).Msg("no ledger snapshot found, starting empty")
		return NewSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	var keys []string
	if err := json.Unmarshal(body, &keys); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", l.key, err)
	}

	zerolog.Ctx(ctx).Info().Str("key", l.key).Int("processed", len(keys)).Msg("ledger loaded")
	return NewSet(keys...), nil
}

// Save overwrites the snapshot with the whole set in one put.
func (l *Ledger) Save(ctx context.Context, set Set) error {
	body, err := json.Marshal(set.Keys())
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := l.objects.Put(ctx, l.key, body); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}
