package store

import "time"

// NopSeenStore is a no-op seen store used in dry-run watch mode. It never
// marks jobs as seen, so every job appears new on each cycle.
type NopSeenStore struct{}

func NewNopSeenStore() *NopSeenStore { return &NopSeenStore{} }

func (s *NopSeenStore) HasSeen(key string) (bool, error)      { return false, nil }
func (s *NopSeenStore) MarkSeen(key string) error             { return nil }
func (s *NopSeenStore) Cleanup(olderThan time.Duration) error { return nil }
