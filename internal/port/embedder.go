package port

import "context"

// Embedder turns text into fixed-dimension vectors. Implementations
// wrap an external model call; the engine never computes embeddings
// itself.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
