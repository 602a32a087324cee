package cache

import (
	"errors"
	"fmt"

	"github.com/fivetwenty-io/restgraph/internal/constants"
)

// Type selects a cache backend.
type Type string

const (
	// TypeMemory is the in-process cache.
	TypeMemory Type = "memory"

	// TypeNATS is the NATS JetStream KV cache.
	TypeNATS Type = "nats"

	// TypeNone disables caching.
	TypeNone Type = "none"
)

// Static errors for err113 compliance.
var (
	ErrNATSConfigRequired = errors.New("NATS configuration required for NATS cache")
	ErrUnsupportedType    = errors.New("unsupported cache type")
)

// Config selects and configures a cache backend.
type Config struct {
	Type Type

	// MaxSize bounds the memory cache. Zero uses the default.
	MaxSize int

	// NATS configures the NATS backend; required when Type is TypeNATS.
	NATS *NATSKVConfig
}

// NewFromConfig builds a cache backend from configuration. A nil config
// yields a default-sized memory cache.
func NewFromConfig(config *Config) (Cache, error) {
	if config == nil {
		config = &Config{Type: TypeMemory}
	}

	switch config.Type {
	case TypeMemory, "":
		maxSize := config.MaxSize
		if maxSize <= 0 {
			maxSize = constants.DefaultCacheSize
		}

		return NewMemoryCache(maxSize), nil

	case TypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		return NewNATSKVCache(config.NATS)

	case TypeNone:
		return NewNoOpCache(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, config.Type)
	}
}
