package backend

import (
	"context"
	"time"
)

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the document store described by config
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string

	// Subscription buffer per subscriber; 0 keeps the store default
	SubscriptionBuffer int

	// Point-read cache; size 0 disables it
	CacheSize int
	CacheTTL  time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// IsValid checks if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// String returns the string representation of the backend type
func (bt BackendType) String() string {
	return string(bt)
}
