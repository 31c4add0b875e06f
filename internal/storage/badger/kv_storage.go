package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

// KVStorage is the badger-backed settings store. API keys resolved through
// common.ResolveAPIKey live here, seeded from .env files at boot.
type KVStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewKVStorage creates a new KVStorage instance
func NewKVStorage(db *BadgerDB, logger arbor.ILogger) interfaces.KeyValueStorage {
	return &KVStorage{db: db, logger: logger}
}

// Keys are case-insensitive; normalized once on every path
func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// fetch loads one pair, mapping badgerhold's not-found onto the package
// sentinel
func (s *KVStorage) fetch(key string) (*interfaces.KeyValuePair, error) {
	var pair interfaces.KeyValuePair
	switch err := s.db.Store().Get(normalizeKey(key), &pair); err {
	case nil:
		return &pair, nil
	case badgerhold.ErrNotFound:
		return nil, interfaces.ErrKeyNotFound
	default:
		return nil, fmt.Errorf("failed to get key %q: %w", key, err)
	}
}

// Get retrieves a value by key
func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	pair, err := s.fetch(key)
	if err != nil {
		return "", err
	}
	return pair.Value, nil
}

// GetPair retrieves the full pair with its metadata
func (s *KVStorage) GetPair(ctx context.Context, key string) (*interfaces.KeyValuePair, error) {
	return s.fetch(key)
}

// Set inserts or updates a pair, preserving CreatedAt across updates
func (s *KVStorage) Set(ctx context.Context, key string, value string, description string) error {
	k := normalizeKey(key)
	now := time.Now()

	pair := interfaces.KeyValuePair{
		Key:         k,
		Value:       value,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing, err := s.fetch(k); err == nil {
		pair.CreatedAt = existing.CreatedAt
	}

	if err := s.db.Store().Upsert(k, &pair); err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

// Delete removes a pair
func (s *KVStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Store().Delete(normalizeKey(key), &interfaces.KeyValuePair{})
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// List returns every pair, most recently updated first
func (s *KVStorage) List(ctx context.Context) ([]interfaces.KeyValuePair, error) {
	var pairs []interfaces.KeyValuePair
	if err := s.db.Store().Find(&pairs, badgerhold.Where("Key").Ne("").SortBy("UpdatedAt").Reverse()); err != nil {
		return nil, fmt.Errorf("failed to list key/value pairs: %w", err)
	}
	return pairs, nil
}

// GetAll returns every pair as a key-to-value map
func (s *KVStorage) GetAll(ctx context.Context) (map[string]string, error) {
	pairs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	kvMap := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		kvMap[pair.Key] = pair.Value
	}
	return kvMap, nil
}
