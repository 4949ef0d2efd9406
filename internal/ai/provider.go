package ai

import (
	"context"
	"errors"
)

// Query is one vision request: prompt text, the requesting owner and
// an optional image URL (empty string when none).
type Query struct {
	Prompt   string
	OwnerID  string
	ImageURL string
}

type Provider interface {
	Describe(ctx context.Context, q Query) (string, error)
}

// ErrMalformedResponse marks a reply the upstream API returned without
// a usable response field. Validated at the boundary so callers never
// see a raw upstream shape.
var ErrMalformedResponse = errors.New("ai: malformed response")
