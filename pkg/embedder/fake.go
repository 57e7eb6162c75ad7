package embedder

import (
	"context"
	"hash/fnv"
)

// Fake is a deterministic, dependency-free Embedder for tests: the same
// text always yields the same vector, and different texts yield
// different vectors with high probability, without any network call.
type Fake struct {
	dim int
}

// NewFake constructs a Fake producing vectors of the given dimension.
func NewFake(dim int) *Fake {
	return &Fake{dim: dim}
}

// Dim reports the embedding dimension this embedder produces.
func (f *Fake) Dim() int { return f.dim }

// Embed hashes text into a seeded pseudo-random vector. Two different
// input texts may collide on a subset of components but practically
// never on the whole vector, which is all these tests assert on.
func (f *Fake) Embed(_ context.Context, text string) ([]float32, error) {
	return f.vector(text), nil
}

func (f *Fake) vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	out := make([]float32, f.dim)
	state := seed
	for i := range out {
		state = state*6364136223846793005 + 1442695040888963407
		out[i] = float32(state>>40) / float32(1<<24)
	}
	return out
}
