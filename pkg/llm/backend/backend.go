// Package backend abstracts the outbound call to the model provider behind
// one contract, with two concrete flavors: the AI Builders gateway and a
// directly OpenAI-compatible endpoint. The relay pipeline only ever sees the
// normalized chunk and response shapes from pkg/llm, so it stays
// backend-agnostic.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/muuya/essence-logic/pkg/llm"
)

// Supported backend service names.
const (
	Gateway  = "gateway"
	DeepSeek = "deepseek"

	// legacyGateway is the service name the original deployment environment
	// used for the gateway flavor.
	legacyGateway = "test"
)

// DefaultTimeout bounds a non-streaming call end to end, and the dial and
// response-header phases of a streaming call. A streamed body stays open as
// long as chunks keep arriving; callers cancel it through the context.
const DefaultTimeout = 60 * time.Second

// Backend is the capability contract for one upstream chat provider.
type Backend interface {
	// Name returns the canonical service name ("gateway" or "deepseek").
	Name() string

	// BaseURL returns the configured upstream base URL.
	BaseURL() string

	// NormalizeModel maps a short model alias to the identifier this
	// backend expects. Called exactly once per request, before dispatch.
	NormalizeModel(model string) string

	// Complete issues one request and returns the fully parsed response.
	// A non-2xx status is returned as a *StatusError.
	Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	// CompleteStream issues one request with the stream flag set and
	// returns the live decoded chunk sequence. A non-2xx status before any
	// chunk bytes are read is returned as a *StatusError.
	CompleteStream(ctx context.Context, req *llm.ChatRequest) (*llm.Stream, error)
}

// SupportedServices returns the recognized service names.
func SupportedServices() []string {
	return []string{Gateway, DeepSeek}
}

// Config carries the settings needed to construct a backend.
type Config struct {
	// Service selects the backend flavor ("gateway" or "deepseek").
	Service string

	// BaseURL overrides the flavor's default upstream base URL.
	BaseURL string

	// Token is the bearer credential for the upstream API.
	Token string

	// Timeout bounds a non-streaming call end to end; for streaming calls
	// it covers only dialing and the wait for response headers. Defaults
	// to DefaultTimeout.
	Timeout time.Duration
}

// New creates a Backend for the configured service.
// Returns an error for an unrecognized service name or a missing credential.
func New(cfg Config) (Backend, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("no credential configured for service %q", cfg.Service)
	}

	switch cfg.Service {
	case Gateway, legacyGateway, "":
		return newGateway(cfg), nil
	case DeepSeek:
		return newDeepSeek(cfg), nil
	default:
		return nil, fmt.Errorf("unknown service: %q (supported: %v)", cfg.Service, SupportedServices())
	}
}
