// Package vectorops provides small numerical primitives over dense 32-bit
// float vectors shared by the event vectorizer, the HDBSCAN clusterer, and
// the force-directed layout. All functions assume equal-length inputs and
// never allocate beyond what they return; degenerate inputs produce zeros
// rather than errors or NaNs.
package vectorops

import "math"

// epsilon below which a vector's L2 norm is treated as zero.
const epsilon = 1e-12

// Normalize returns v / ‖v‖₂. When ‖v‖₂ < epsilon it returns a copy of v
// unchanged, avoiding a divide-by-zero that would otherwise produce NaNs.
func Normalize(v []float32) []float32 {
	norm := Norm(v)
	out := make([]float32, len(v))
	if norm < epsilon {
		copy(out, v)
		return out
	}
	inv := float32(1.0 / norm)
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	return math.Sqrt(sumSq)
}

// Cosine returns ⟨a,b⟩ / (‖a‖‖b‖), or 0 if either side is zero-length or the
// zero vector.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA < epsilon || normB < epsilon {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// WeightedMean returns Σ wᵢvᵢ / Σ wᵢ. It returns nil, false when the inputs
// are empty or Σ wᵢ ≤ 0, mirroring the spec's "None" result for degenerate
// pooling inputs.
func WeightedMean(vectors [][]float32, weights []float64) ([]float32, bool) {
	if len(vectors) == 0 || len(vectors) != len(weights) {
		return nil, false
	}

	var totalWeight float64
	for _, w := range weights {
		totalWeight += w
	}
	if totalWeight <= 0 {
		return nil, false
	}

	dim := len(vectors[0])
	sum := make([]float64, dim)
	for i, vec := range vectors {
		w := weights[i]
		for j, x := range vec {
			sum[j] += w * float64(x)
		}
	}

	out := make([]float32, dim)
	for j, s := range sum {
		out[j] = float32(s / totalWeight)
	}
	return out, true
}

// Add returns a + b element-wise.
func Add(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// Sub returns a - b element-wise.
func Sub(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// Scale returns v * s element-wise.
func Scale(v []float32, s float32) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * s
	}
	return out
}

// Euclidean returns the non-negative Euclidean distance between a and b,
// computed via the expanded dot-product form and clamped at 0 to tolerate
// floating point error in near-identical vectors.
func Euclidean(a, b []float32) float64 {
	var sqA, sqB, dot float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		sqA += ai * ai
		sqB += bi * bi
		dot += ai * bi
	}
	d2 := sqA + sqB - 2*dot
	if d2 < 0 {
		d2 = 0
	}
	return math.Sqrt(d2)
}

// Concat concatenates vectors in order into a single dense vector.
func Concat(parts ...[]float32) []float32 {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]float32, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
