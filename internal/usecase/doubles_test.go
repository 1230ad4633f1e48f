package usecase

import (
	"context"
	"errors"
)

// stubEmbedder maps exact texts to fixed vectors so tests control
// similarity scores. Unknown texts embed to the fallback vector.
type stubEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	dim      int
	err      error
	calls    int
}

func (e *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = e.fallback
		}
	}
	return out, nil
}

func (e *stubEmbedder) Dimension() int    { return e.dim }
func (e *stubEmbedder) ModelName() string { return "stub" }

// stubLLM returns a canned answer and records the prompts it saw.
type stubLLM struct {
	answer  string
	err     error
	calls   int
	prompts []string
}

func (l *stubLLM) Generate(ctx context.Context, prompt string) (string, error) {
	l.calls++
	l.prompts = append(l.prompts, prompt)
	if l.err != nil {
		return "", l.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.answer, nil
}

func (l *stubLLM) ModelName() string { return "stub" }

var errBoom = errors.New("boom")
