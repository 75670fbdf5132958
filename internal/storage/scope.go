package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Scope is a namespaced JSON view over a KV with a fixed lifetime. Two
// scopes with different namespaces never see each other's keys.
type Scope struct {
	kv        KV
	namespace string
	ttl       time.Duration
}

func NewScope(kv KV, namespace string, ttl time.Duration) *Scope {
	return &Scope{kv: kv, namespace: namespace, ttl: ttl}
}

func (s *Scope) key(k string) string { return s.namespace + ":" + k }

func (s *Scope) Write(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", s.namespace, err)
	}
	return s.kv.Set(ctx, s.key(key), b, s.ttl)
}

// Read decodes the stored value into dst. It returns ErrNotFound when the key
// is absent and wraps ErrCorrupt when the bytes do not decode.
func (s *Scope) Read(ctx context.Context, key string, dst any) error {
	b, err := s.kv.Get(ctx, s.key(key))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, s.namespace, err)
	}
	return nil
}

func (s *Scope) Clear(ctx context.Context, key string) error {
	err := s.kv.Delete(ctx, s.key(key))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
