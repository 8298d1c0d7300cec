package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNoValue indicates no value was set for the config
	ErrNoValue = errors.New("config: no value set")

	// ErrShutdown indicates the use of a Config after calling Shutdown
	ErrShutdown = errors.New("config: shutdown")
)

// Config is an interface for getting a configuration value
type Config interface {
	// Get returns the latest config value
	Get(ctx context.Context) (interface{}, error)

	// Shutdown signals the config to stop all underlying resources
	Shutdown()
}

// Typed is a config.Config whose values are converted to T, falling back to
// a default when no value is set.
type Typed[T any] interface {
	// Get returns the latest value, ignoring any error.
	Get(ctx context.Context) T

	// GetSafe returns the latest value and any error raised fetching or
	// converting it. On error, the last known value is returned.
	GetSafe(ctx context.Context) (T, error)

	Shutdown()
}

type (
	Bool     = Typed[bool]
	Duration = Typed[time.Duration]
	Float64  = Typed[float64]
	String   = Typed[string]
	Uint64   = Typed[uint64]
)
