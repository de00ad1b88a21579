// Package semantic supplies similarity scores for sections from externally
// produced embedding vectors. It never generates embeddings itself; vectors
// arrive from callers and are only compared.
package semantic

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// Provider returns a similarity score in [0, 1] for each of the given
// sections against a query embedding. Sections the provider cannot score are
// simply absent from the map.
type Provider interface {
	Scores(ctx context.Context, queryEmbedding []float32, sectionIDs []int64) (map[int64]float64, error)
}

// EmbeddingSource fetches a stored section embedding; nil means none is set.
type EmbeddingSource interface {
	SectionEmbedding(ctx context.Context, id int64) ([]float32, error)
}

// CosineProvider scores sections by cosine similarity between the query
// embedding and each section's stored embedding, rescaled from [-1, 1] to
// [0, 1]. Sections with no stored embedding, or with a dimension mismatch,
// are left unscored.
type CosineProvider struct {
	src EmbeddingSource
}

func NewCosineProvider(src EmbeddingSource) *CosineProvider {
	return &CosineProvider{src: src}
}

func (p *CosineProvider) Scores(ctx context.Context, queryEmbedding []float32, sectionIDs []int64) (map[int64]float64, error) {
	out := make(map[int64]float64, len(sectionIDs))
	if len(queryEmbedding) == 0 {
		return out, nil
	}
	for _, id := range sectionIDs {
		emb, err := p.src.SectionEmbedding(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("embedding for section %d: %w", id, err)
		}
		if len(emb) == 0 {
			continue
		}
		cos, err := CosineSimilarity(queryEmbedding, emb)
		if err != nil {
			continue
		}
		out[id] = (cos + 1) / 2
	}
	return out, nil
}

// EncodeEmbedding encodes a float32 vector as a little-endian IEEE 754 BLOB
// without a length prefix; the length is derived from the BLOB size on
// decode. An empty vector encodes to nil.
func EncodeEmbedding(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b, nil
}

// DecodeEmbedding decodes a BLOB produced by EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// CosineSimilarity computes the cosine similarity between two vectors. It
// errors on a dimension mismatch or a zero-magnitude vector.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine similarity dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("cosine similarity on empty vectors")
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0, fmt.Errorf("cosine similarity with zero-magnitude vector")
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2)), nil
}
