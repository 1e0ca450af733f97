package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
)

const stateKeyPrefix = "liveness:"

// LivenessState is the stored per-location observation. A location with no
// stored state is in the unknown initial state; the first definite
// observation is recorded without notifying.
type LivenessState struct {
	Online         bool      `json:"online"`
	LastObservedAt time.Time `json:"lastObservedAt"`
}

// StateStore keeps per-location liveness state in Redis so a bot restart
// resumes from the last definite observation instead of re-absorbing a cold
// start for every location.
type StateStore struct {
	client rueidis.Client
}

// NewStateStore creates a liveness state store.
func NewStateStore(client rueidis.Client) *StateStore {
	return &StateStore{client: client}
}

// Get returns the stored state for a location. The second return value is
// false when the location has never been observed.
func (s *StateStore) Get(ctx context.Context, location string) (LivenessState, bool, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().
		Key(stateKeyPrefix+location).
		Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return LivenessState{}, false, nil
		}

		return LivenessState{}, false, fmt.Errorf("failed to load liveness state: %w", err)
	}

	var state LivenessState
	if err := sonic.Unmarshal(data, &state); err != nil {
		return LivenessState{}, false, fmt.Errorf("failed to unmarshal liveness state: %w", err)
	}

	return state, true, nil
}

// Put stores the location's latest definite observation.
func (s *StateStore) Put(ctx context.Context, location string, state LivenessState) error {
	data, err := sonic.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal liveness state: %w", err)
	}

	err = s.client.Do(ctx, s.client.B().Set().
		Key(stateKeyPrefix+location).
		Value(string(data)).
		Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to store liveness state: %w", err)
	}

	return nil
}
