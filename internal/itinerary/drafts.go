package itinerary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/rental-checkout/internal/storage"
)

var ErrNoDraft = errors.New("no itinerary in progress")

// DraftStore keeps each tab's itinerary between requests.
type DraftStore struct {
	scope *storage.Scope
}

func NewDraftStore(kv storage.KV, ttl time.Duration) *DraftStore {
	return &DraftStore{scope: storage.NewScope(kv, "draft", ttl)}
}

func (d *DraftStore) Load(ctx context.Context, session string) (*Store, error) {
	var draft Draft
	if err := d.scope.Read(ctx, session, &draft); err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrCorrupt) {
			return nil, ErrNoDraft
		}
		return nil, fmt.Errorf("load draft: %w", err)
	}
	return FromDraft(draft), nil
}

func (d *DraftStore) Save(ctx context.Context, session string, s *Store) error {
	return d.scope.Write(ctx, session, s.Snapshot())
}

func (d *DraftStore) Discard(ctx context.Context, session string) error {
	return d.scope.Clear(ctx, session)
}
