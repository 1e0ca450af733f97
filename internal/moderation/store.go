package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// ErrDraftNotFound is returned when a wizard interaction arrives for a draft
// that was never started or has already timed out.
var ErrDraftNotFound = errors.New("wizard draft not found or expired")

const draftKeyPrefix = "wizard:"

// DraftStore persists in-flight wizard drafts in Redis. Each draft carries a
// TTL equal to the wizard timeout, so abandoned wizards expire on their own
// with no side effects.
type DraftStore struct {
	client rueidis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewDraftStore creates a draft store with the given wizard timeout.
func NewDraftStore(client rueidis.Client, ttl time.Duration, logger *zap.Logger) *DraftStore {
	return &DraftStore{
		client: client,
		ttl:    ttl,
		logger: logger.Named("wizard_store"),
	}
}

// Save writes the draft, refreshing its TTL. Every field update goes through
// here so an active wizard keeps its full timeout from the last interaction.
func (s *DraftStore) Save(ctx context.Context, draft *Draft) error {
	data, err := sonic.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal wizard draft: %w", err)
	}

	err = s.client.Do(ctx, s.client.B().Set().
		Key(draftKeyPrefix+draft.CaseID).
		Value(string(data)).
		Ex(s.ttl).
		Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to save wizard draft: %w", err)
	}

	return nil
}

// Get loads the draft for a case. Returns ErrDraftNotFound when no draft
// exists, which callers surface as a timed-out wizard.
func (s *DraftStore) Get(ctx context.Context, caseID string) (*Draft, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().
		Key(draftKeyPrefix+caseID).
		Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrDraftNotFound
		}

		return nil, fmt.Errorf("failed to load wizard draft: %w", err)
	}

	var draft Draft
	if err := sonic.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wizard draft: %w", err)
	}

	return &draft, nil
}

// Delete removes the draft, used on submission and explicit cancel.
func (s *DraftStore) Delete(ctx context.Context, caseID string) error {
	err := s.client.Do(ctx, s.client.B().Del().
		Key(draftKeyPrefix+caseID).
		Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to delete wizard draft: %w", err)
	}

	return nil
}
