// -----------------------------------------------------------------------
// Last Modified: Wednesday, 14th October 2026 2:10:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/interfaces"
)

// Provider credential names resolved by common.ResolveAPIKey
const (
	KeyEODHD     = "eodhd_api_key"
	KeyGemini    = "gemini_api_key"
	KeyAnthropic = "anthropic_api_key"
)

// KnownKeys describes the credentials the worker looks up
var KnownKeys = map[string]string{
	KeyEODHD:     "EODHD market data API key",
	KeyGemini:    "Google Gemini API key",
	KeyAnthropic: "Anthropic Claude API key",
}

// Entry is a stored pair with its value masked for display
type Entry struct {
	Key         string
	Masked      string
	Description string
	Known       bool
}

// Service manages stored provider credentials
type Service struct {
	storage interfaces.KeyValueStorage
	logger  arbor.ILogger
}

// NewService creates a new key/value service
func NewService(storage interfaces.KeyValueStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// Get retrieves a value by key
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	value, err := s.storage.Get(ctx, normalizeKey(key))
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores or updates a key/value pair. Known keys get their standard
// description when none is given.
func (s *Service) Set(ctx context.Context, key string, value string, description string) error {
	key = normalizeKey(key)
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("value for %s cannot be empty", key)
	}
	if description == "" {
		description = KnownKeys[key]
	}

	if err := s.storage.Set(ctx, key, strings.TrimSpace(value), description); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to store key/value pair")
		return err
	}

	s.logger.Info().Str("key", key).Bool("known", isKnown(key)).Msg("Stored key/value pair")
	return nil
}

// Delete removes a key/value pair
func (s *Service) Delete(ctx context.Context, key string) error {
	key = normalizeKey(key)
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to delete key/value pair")
		return err
	}

	s.logger.Info().Str("key", key).Msg("Deleted key/value pair")
	return nil
}

// List returns every stored pair, masked and sorted by key
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	pairs, err := s.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list key/value pairs: %w", err)
	}

	entries := make([]Entry, 0, len(pairs))
	for _, p := range pairs {
		entries = append(entries, Entry{
			Key:         p.Key,
			Masked:      Mask(p.Value),
			Description: p.Description,
			Known:       isKnown(p.Key),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Missing returns the known keys that have no stored value
func (s *Service) Missing(ctx context.Context) ([]string, error) {
	var missing []string
	for key := range KnownKeys {
		if _, err := s.storage.Get(ctx, key); err != nil {
			if errors.Is(err, interfaces.ErrKeyNotFound) {
				missing = append(missing, key)
				continue
			}
			return nil, err
		}
	}
	sort.Strings(missing)
	return missing, nil
}

// Mask keeps the last four characters of a secret
func Mask(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func isKnown(key string) bool {
	_, ok := KnownKeys[key]
	return ok
}
