package index

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	chromem "github.com/philippgille/chromem-go"
)

// DefaultHashDimensions is the vector size of HashEmbedding.
const DefaultHashDimensions = 256

// HashEmbedding returns a deterministic, dependency free embedding function
// that hashes lowercased words into a normalized bag-of-words vector. It
// needs no API key, which makes it suitable for demos and tests; use
// OpenAIEmbedding for semantic search.
func HashEmbedding(dims int) chromem.EmbeddingFunc {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dims)
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		for _, w := range words {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			vec[h.Sum32()%uint32(dims)]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		if norm == 0 {
			vec[0] = 1
			return vec, nil
		}
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
		return vec, nil
	}
}

// OpenAIEmbedding returns chromem's OpenAI embedding function using the
// text-embedding-3-small model.
func OpenAIEmbedding(apiKey string) chromem.EmbeddingFunc {
	return chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI3Small)
}
