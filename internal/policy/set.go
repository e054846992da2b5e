package policy

import (
	"log/slog"
	"sync"
)

// Set hands out compiled engines per expression, falling back to a default.
type Set struct {
	logger   *slog.Logger
	fallback *Engine

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewSet compiles the default expression and returns a Set around it.
func NewSet(logger *slog.Logger, defaultConfig PolicyConfig) (*Set, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fallback, err := NewEngine(logger, defaultConfig)
	if err != nil {
		return nil, err
	}
	return &Set{
		logger:   logger,
		fallback: fallback,
		engines:  map[string]*Engine{fallback.Expression(): fallback},
	}, nil
}

// Default returns the engine for the default expression.
func (s *Set) Default() *Engine {
	return s.fallback
}

// For returns the engine for expression, compiling it on first use.
// An empty expression selects the default engine.
func (s *Set) For(expression string) (*Engine, error) {
	if expression == "" {
		return s.fallback, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.engines[expression]; ok {
		return e, nil
	}
	e, err := NewEngine(s.logger, PolicyConfig{Expression: expression})
	if err != nil {
		return nil, err
	}
	s.engines[expression] = e
	return e, nil
}
