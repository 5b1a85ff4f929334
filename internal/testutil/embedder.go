package testutil

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// FakeEmbedder implements ai.Embedder with deterministic vectors derived
// from the input text, so similarity tests behave the same on every run
// without network access. Identical texts embed identically; different
// texts almost certainly do not.
type FakeEmbedder struct {
	// Dimension of the produced vectors. Defaults to 768 when zero.
	Dimension int
}

func (e *FakeEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	dim := e.Dimension
	if dim == 0 {
		dim = 768
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text string
		for _, part := range doc.Content {
			text += part.Text
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: deterministicVector(text, dim),
		})
	}
	return resp, nil
}

func (e *FakeEmbedder) Name() string { return "testutil/fake-embedder" }

func (e *FakeEmbedder) Register(api.Registry) {}

// deterministicVector hashes the text into a unit vector.
func deterministicVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		h := fnv.New64a()
		_, _ = h.Write([]byte(text))
		_, _ = h.Write([]byte{byte(i), byte(i >> 8)})
		// map the hash onto [-1, 1)
		v := float64(int64(h.Sum64())) / float64(math.MaxInt64)
		vec[i] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
