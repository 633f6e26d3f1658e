package stt

import (
	"context"
	"fmt"
	"log/slog"
)

// Chain implements Provider by trying multiple providers in order.
// The first successful provider wins; if all fail, returns an aggregate error.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain creates a provider chain that tries providers in order.
// At least one provider is required.
func NewChain(providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}

	return &Chain{
		providers: providers,
		logger:    slog.Default().With("component", "stt.chain"),
	}, nil
}

// NewChainWithLogger creates a provider chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	chain, err := NewChain(providers...)
	if err != nil {
		return nil, err
	}
	chain.logger = logger.With("component", "stt.chain")
	return chain, nil
}

// Transcribe tries each provider until one succeeds.
func (c *Chain) Transcribe(ctx context.Context, pcm []byte) (*Utterance, error) {
	var errs []error

	for i, p := range c.providers {
		utt, err := p.Transcribe(ctx, pcm)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback transcriber succeeded",
					"provider_index", i,
					"audio_bytes", len(pcm),
				)
			}
			return utt, nil
		}

		errs = append(errs, err)
		c.logger.Warn("transcriber failed, trying next",
			"provider_index", i,
			"error", err,
		)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, &ChainError{Errors: errs}
}

// Health checks all providers and returns error if all are unhealthy.
func (c *Chain) Health(ctx context.Context) error {
	var healthy int
	var lastErr error

	for _, p := range c.providers {
		if err := p.Health(ctx); err != nil {
			lastErr = err
		} else {
			healthy++
		}
	}

	if healthy == 0 {
		return fmt.Errorf("all %d transcribers unhealthy: %w", len(c.providers), lastErr)
	}
	return nil
}

// Close closes all providers, returning the first error.
func (c *Chain) Close() error {
	var firstErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Verify Chain implements Provider at compile time.
var _ Provider = (*Chain)(nil)
