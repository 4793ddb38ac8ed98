package petpal

import "context"

// Generator turns a composed prompt into final prose. The output is treated
// as opaque text — the core never parses it.
// Built-in: GroqGenerator. Implement this for other backends.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
