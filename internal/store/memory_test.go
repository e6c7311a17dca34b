package store

import "testing"

// TestMemoryStore runs all store tests against the in-memory implementation
func TestMemoryStore(t *testing.T) {
	RunStoreTests(t, func(t *testing.T) Store { return NewMemoryStore() }, func(t *testing.T) {})
}
