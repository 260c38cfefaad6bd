// Package memory is a process-local persistence engine. Nothing survives a
// restart; it backs tests and ephemeral sessions.
package memory

import (
	"bytes"
	"context"
	"sync"
)

type Adapter struct {
	mu     sync.RWMutex
	tables map[string][]byte
}

func New() *Adapter {
	return &Adapter{tables: make(map[string][]byte)}
}

func (a *Adapter) Load(_ context.Context, table string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.tables[table]
	if !ok {
		return nil, nil
	}
	return bytes.Clone(v), nil
}

func (a *Adapter) Save(_ context.Context, table string, value []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if value == nil {
		value = []byte{}
	}
	a.tables[table] = bytes.Clone(value)
	return nil
}

func (a *Adapter) Delete(_ context.Context, table string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.tables, table)
	return nil
}

// Tables returns the names of the stored tables.
func (a *Adapter) Tables() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.tables))
	for k := range a.tables {
		out = append(out, k)
	}
	return out
}

func (a *Adapter) Close() error { return nil }
