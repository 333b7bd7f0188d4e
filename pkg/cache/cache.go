// Package cache stores answers keyed by the question that produced them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var ErrMiss = errors.New("cache miss")

type Cache interface {
	// Get returns ErrMiss when no live entry exists for question.
	Get(ctx context.Context, question string) (string, error)
	Set(ctx context.Context, question, answer string) error
	// Clear drops every answer, for when the index they came from is rebuilt.
	Clear(ctx context.Context) error
}

type Config struct {
	TTL       time.Duration
	KeyPrefix string
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "docqa:answer:"
	}
	return c
}

// Key hashes question so arbitrary input maps to a bounded key.
func Key(prefix, question string) string {
	hash := sha256.Sum256([]byte(question))
	return prefix + hex.EncodeToString(hash[:])
}
