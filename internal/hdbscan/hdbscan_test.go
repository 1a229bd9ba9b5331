package hdbscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwgraph/analyticscore/pkg/corpus"
)

func tightCluster(start int64, count int, center []float32, step float32) ([]int64, [][]float32) {
	ids := make([]int64, count)
	vecs := make([][]float32, count)
	for i := 0; i < count; i++ {
		ids[i] = start + int64(i)
		v := make([]float32, len(center))
		copy(v, center)
		v[0] += step * float32(i)
		vecs[i] = v
	}
	return ids, vecs
}

func TestRunInvalidParameters(t *testing.T) {
	_, err := Run([]int64{1}, [][]float32{{1, 2}}, Config{MinClusterSize: 0})
	assert.ErrorIs(t, err, corpus.ErrInvalidParameters)
}

func TestRunNoEvents(t *testing.T) {
	_, err := Run(nil, nil, Config{MinClusterSize: 2})
	assert.ErrorIs(t, err, corpus.ErrNoEvents)
}

func TestRunSinglePointIsNoise(t *testing.T) {
	out, err := Run([]int64{7}, [][]float32{{1, 2, 3}}, Config{MinClusterSize: 2})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, -1, out[0].Label)
	assert.Equal(t, 0.0, out[0].Membership)
}

func TestTwoDisjointClustersNoNoise(t *testing.T) {
	idsA, vecsA := tightCluster(0, 40, []float32{0, 0, 0}, 0.001)
	idsB, vecsB := tightCluster(40, 40, []float32{500, 500, 500}, 0.001)

	ids := append(append([]int64{}, idsA...), idsB...)
	vecs := append(append([][]float32{}, vecsA...), vecsB...)

	out, err := Run(ids, vecs, Config{MinClusterSize: 20, MinSamples: 10})
	require.NoError(t, err)
	require.Len(t, out, 80)

	labelSet := map[int]int{}
	for _, a := range out {
		assert.NotEqual(t, -1, a.Label, "expected no noise in two well-separated clusters")
		labelSet[a.Label]++
	}
	assert.Len(t, labelSet, 2)
	for _, size := range labelSet {
		assert.Equal(t, 40, size)
	}

	// Points 0..39 must all share one label, distinct from 40..79's label.
	byID := map[int64]int{}
	for _, a := range out {
		byID[a.EdgeID] = a.Label
	}
	for _, id := range idsA[1:] {
		assert.Equal(t, byID[idsA[0]], byID[id])
	}
	for _, id := range idsB[1:] {
		assert.Equal(t, byID[idsB[0]], byID[id])
	}
	assert.NotEqual(t, byID[idsA[0]], byID[idsB[0]])
}

func TestOneClusterPlusIsolatedNoise(t *testing.T) {
	idsMain, vecsMain := tightCluster(0, 50, []float32{0, 0, 0}, 0.001)

	isolated := [][]float32{
		{10000, 0, 0},
		{0, 10000, 0},
		{0, 0, 10000},
		{-10000, 0, 0},
		{0, -10000, 0},
	}
	idsIso := []int64{1000, 1001, 1002, 1003, 1004}

	ids := append(append([]int64{}, idsMain...), idsIso...)
	vecs := append(append([][]float32{}, vecsMain...), isolated...)

	out, err := Run(ids, vecs, Config{MinClusterSize: 20})
	require.NoError(t, err)
	require.Len(t, out, 55)

	byID := map[int64]corpus.Assignment{}
	for _, a := range out {
		byID[a.EdgeID] = a
	}

	mainLabel := byID[idsMain[0]].Label
	assert.NotEqual(t, -1, mainLabel)
	for _, id := range idsMain[1:] {
		assert.Equal(t, mainLabel, byID[id].Label)
	}

	noiseCount := 0
	for _, id := range idsIso {
		if byID[id].Label == -1 {
			noiseCount++
		}
	}
	assert.Equal(t, 5, noiseCount)
}

func TestAllIdenticalPointsFormOneCluster(t *testing.T) {
	ids := make([]int64, 12)
	vecs := make([][]float32, 12)
	for i := range ids {
		ids[i] = int64(i)
		vecs[i] = []float32{1, 1, 1}
	}

	out, err := Run(ids, vecs, Config{MinClusterSize: 4})
	require.NoError(t, err)

	label := out[0].Label
	assert.NotEqual(t, -1, label)
	for _, a := range out {
		assert.Equal(t, label, a.Label)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	idsA, vecsA := tightCluster(0, 25, []float32{0, 0, 0}, 0.01)
	idsB, vecsB := tightCluster(25, 25, []float32{200, 200, 200}, 0.01)
	ids := append(append([]int64{}, idsA...), idsB...)
	vecs := append(append([][]float32{}, vecsA...), vecsB...)

	cfg := Config{MinClusterSize: 10, MinSamples: 5}
	first, err := Run(ids, vecs, cfg)
	require.NoError(t, err)
	second, err := Run(ids, vecs, cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLabelsAndSizesAreConsistent(t *testing.T) {
	idsA, vecsA := tightCluster(0, 30, []float32{0, 0, 0}, 0.01)
	idsB, vecsB := tightCluster(30, 30, []float32{300, 300, 300}, 0.01)
	ids := append(append([]int64{}, idsA...), idsB...)
	vecs := append(append([][]float32{}, vecsA...), vecsB...)

	out, err := Run(ids, vecs, Config{MinClusterSize: 10, MinSamples: 5})
	require.NoError(t, err)

	sizes := map[int]int{}
	for _, a := range out {
		assert.True(t, a.Label == -1 || a.Label >= 0)
		sizes[a.Label]++
	}

	total := 0
	for label, size := range sizes {
		if label == -1 {
			continue
		}
		total += size
	}
	total += sizes[-1]
	assert.Equal(t, 60, total)
}
