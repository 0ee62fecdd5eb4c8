package interview

import (
	"context"

	"github.com/ChamsBouzaiene/interviewd/internal/session"
)

// Generator is the LLM collaborator contract. It receives the full
// accumulated history on every call (no server-side incremental context)
// plus a role-derived instruction, and returns the next reply text.
type Generator interface {
	Generate(ctx context.Context, history []session.Turn, instruction string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, history []session.Turn, instruction string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, history []session.Turn, instruction string) (string, error) {
	return f(ctx, history, instruction)
}
