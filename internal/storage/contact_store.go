package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/rental-checkout/internal/models"
)

// ContactStore persists the remembered contact of an anonymous visitor.
type ContactStore interface {
	SaveContact(ctx context.Context, visitorID string, c models.ContactInfo, expiresAt time.Time) error
	LoadContact(ctx context.Context, visitorID string) (models.ContactInfo, error)
	DeleteContact(ctx context.Context, visitorID string) error
}

// KVContactStore keeps remembered contacts in a KV, relying on key expiry.
type KVContactStore struct {
	kv  KV
	now func() time.Time
}

func NewKVContactStore(kv KV) *KVContactStore {
	return &KVContactStore{kv: kv, now: time.Now}
}

func contactKey(visitorID string) string { return "contact-recall:" + visitorID }

func (s *KVContactStore) SaveContact(ctx context.Context, visitorID string, c models.ContactInfo, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.DeleteContact(ctx, visitorID)
	}
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal contact: %w", err)
	}
	return s.kv.Set(ctx, contactKey(visitorID), b, ttl)
}

func (s *KVContactStore) LoadContact(ctx context.Context, visitorID string) (models.ContactInfo, error) {
	var c models.ContactInfo
	b, err := s.kv.Get(ctx, contactKey(visitorID))
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("%w: contact: %v", ErrCorrupt, err)
	}
	return c, nil
}

func (s *KVContactStore) DeleteContact(ctx context.Context, visitorID string) error {
	return s.kv.Delete(ctx, contactKey(visitorID))
}
