package tokenstore

import (
	"context"
	"sync"
)

type inMemoryPersister struct {
	mutex  sync.Mutex
	values map[string]string
}

// NewInMemory returns a Persister that keeps tokens for the life of the process only.
func NewInMemory() *inMemoryPersister {
	return &inMemoryPersister{values: make(map[string]string)}
}

func (p *inMemoryPersister) Load(ctx context.Context) (string, string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	// Check for context cancellation/deadline early.
	select {
	case <-ctx.Done():
		return "", "", ctx.Err()
	default:
	}

	return p.values[KeyAccessToken], p.values[KeyRefreshToken], nil
}

func (p *inMemoryPersister) Save(ctx context.Context, access, refresh string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	p.put(KeyAccessToken, access)
	p.put(KeyRefreshToken, refresh)
	return nil
}

func (p *inMemoryPersister) put(key, value string) {
	if value == "" {
		delete(p.values, key)
		return
	}
	p.values[key] = value
}

func (p *inMemoryPersister) Clear(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	delete(p.values, KeyAccessToken)
	delete(p.values, KeyRefreshToken)
	return nil
}
