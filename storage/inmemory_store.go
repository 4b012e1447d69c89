package storage

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var ErrClosed = errors.New("store is closed")

type InmemoryStore struct {
	mu     sync.RWMutex
	values []byte
	closed bool
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values: []byte("{}"),
	}
}

func (i *InmemoryStore) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.closed = true
	return nil
}

func (i *InmemoryStore) Set(ctx context.Context, key string, value interface{}) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrClosed
	}

	values, err := sjson.SetBytes(i.values, escapeKey(key), value)
	if err != nil {
		return err
	}

	i.values = values
	return nil
}

// Get returns the raw JSON stored at key, or nil if there is nothing there.
func (i *InmemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	result := gjson.GetBytes(i.values, escapeKey(key))
	if !result.Exists() {
		return nil, nil
	}

	// Copy out, the document is rewritten in place by later updates.
	return []byte(result.Raw), nil
}

func (i *InmemoryStore) Delete(ctx context.Context, key string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrClosed
	}

	values, err := sjson.DeleteBytes(i.values, escapeKey(key))
	if err != nil {
		return err
	}

	i.values = values
	return nil
}

func (i *InmemoryStore) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	n := 0
	gjson.ParseBytes(i.values).ForEach(func(_, _ gjson.Result) bool {
		n++
		return true
	})

	return n
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	backup := make([]byte, len(i.values))
	copy(backup, i.values)

	return backup, nil
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
)

// escapeKey turns key into a path that addresses a single top level member,
// whatever characters it contains.
func escapeKey(key string) string {
	return pathEscaper.Replace(key)
}

var _ Store = (*InmemoryStore)(nil)
