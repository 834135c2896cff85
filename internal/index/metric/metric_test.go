package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEuclideanDistanceZeroForIdenticalVectors(t *testing.T) {
	assert.Equal(t, 0.0, Distance(Euclidean, 0, []float64{1, 2, 3}, []float64{1, 2, 3}))
}

func TestEuclideanDistancePythagorean(t *testing.T) {
	assert.InDelta(t, 5.0, Distance(Euclidean, 0, []float64{0, 0}, []float64{3, 4}), 1e-9)
}

func TestCosineDistanceZeroForSameDirection(t *testing.T) {
	assert.InDelta(t, 0.0, Distance(Cosine, 0, []float64{1, 1}, []float64{2, 2}), 1e-9)
}

func TestManhattanDistance(t *testing.T) {
	assert.Equal(t, 7.0, Distance(Manhattan, 0, []float64{0, 0}, []float64{3, 4}))
}

func TestChebyshevDistanceTakesMaxComponent(t *testing.T) {
	assert.Equal(t, 4.0, Distance(Chebyshev, 0, []float64{0, 0}, []float64{3, 4}))
}

func TestHammingDistanceCountsMismatches(t *testing.T) {
	assert.Equal(t, 2.0, Distance(Hamming, 0, []float64{1, 0, 1}, []float64{1, 1, 0}))
}

func TestJaccardDistanceForDisjointSets(t *testing.T) {
	assert.Equal(t, 1.0, Distance(Jaccard, 0, []float64{1, 0}, []float64{0, 1}))
}
