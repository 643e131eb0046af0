// Package rlog centralises ReedBase's structured logging so every component
// logs through the same sink with consistent field names instead of each
// package reaching for its own logger.
package rlog

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu      sync.RWMutex
	current = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

// Default returns the process-wide logger. Safe for concurrent use.
func Default() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetDefault replaces the process-wide logger, e.g. to switch to JSON
// output or a different level in production. Hot-swappable the same way
// the registry's dictionaries are: readers never observe a torn value.
func SetDefault(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

// Component returns a child logger tagged with the owning component, e.g.
// rlog.Component("table").Info().Str("table", name).Msg("write committed").
func Component(name string) zerolog.Logger {
	return Default().With().Str("component", name).Logger()
}
