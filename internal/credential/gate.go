// Package credential resolves the API key used for video generation.
package credential

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"omnigen/internal/models"
)

var errNotSelected = errors.New("no key selected")

// Gate runs before every video request.
type Gate struct {
	selector   Selector
	defaultKey string
	confirm    bool
	logger     *zap.Logger
}

type Option func(*Gate)

// WithSelector enables the external selection flow.
func WithSelector(s Selector) Option {
	return func(g *Gate) { g.selector = s }
}

// WithConfirmation re-checks HasSelectedKey after the selection flow
// instead of assuming it succeeded.
func WithConfirmation(confirm bool) Option {
	return func(g *Gate) { g.confirm = confirm }
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

func NewGate(defaultKey string, opts ...Option) *Gate {
	g := &Gate{defaultKey: defaultKey, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire returns the key to bill the next video request to. It fails
// before any upstream call when no key is available.
func (g *Gate) Acquire(ctx context.Context) (string, error) {
	if g.selector != nil {
		key, err := g.fromSelector(ctx)
		if err != nil {
			g.logger.Warn("key selection failed", zap.Error(err))
			return "", fmt.Errorf("%w: %v", models.ErrKeySelection, err)
		}
		if key != "" {
			return key, nil
		}
	}
	if g.defaultKey == "" {
		return "", models.ErrMissingCredential
	}
	return g.defaultKey, nil
}

func (g *Gate) fromSelector(ctx context.Context) (string, error) {
	has, err := g.selector.HasSelectedKey(ctx)
	if err != nil {
		return "", err
	}
	if !has {
		if err := g.selector.OpenSelectKey(ctx); err != nil {
			return "", err
		}
		if g.confirm {
			has, err = g.selector.HasSelectedKey(ctx)
			if err != nil {
				return "", err
			}
			if !has {
				return "", errNotSelected
			}
		}
	}
	return g.selector.SelectedKey(ctx)
}
