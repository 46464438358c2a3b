package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, math.NaN(), 3}), "NaN masked out")
}

func TestVariance(t *testing.T) {
	// Population variance of {2,4,4,4,5,5,7,9} is exactly 4.
	assert.Equal(t, 4.0, Variance([]float64{2, 4, 4, 4, 5, 5, 7, 9}))
	assert.Equal(t, 0.0, Variance([]float64{5}))
	assert.Equal(t, 0.0, Variance(nil))
}

func TestSampleVariance(t *testing.T) {
	assert.InDelta(t, 2.5, SampleVariance([]float64{1, 2, 3, 4, 5}), 1e-12)
	assert.Equal(t, 0.0, SampleVariance([]float64{5}))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 3.0, Median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 2, 3}))
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 2.0, Median([]float64{math.NaN(), 2}))
}

func TestSlope(t *testing.T) {
	assert.InDelta(t, 2.0, Slope([]float64{0, 2, 4, 6}), 1e-12)
	assert.InDelta(t, -1.0, Slope([]float64{3, 2, 1}), 1e-12)
	assert.Equal(t, 0.0, Slope([]float64{7}), "single point has no slope")
	assert.Equal(t, 0.0, Slope([]float64{5, 5, 5}))
	assert.Equal(t, 0.0, Slope(nil))
}

func TestSlopeMasksNonFinite(t *testing.T) {
	// The NaN at index 1 is removed along with its index, so the fit runs
	// over x={0,2,3} and stays exact for the remaining line y=2x.
	got := Slope([]float64{0, math.NaN(), 4, 6})
	assert.InDelta(t, 2.0, got, 1e-12)
}

func TestSlopeInfiniteInput(t *testing.T) {
	assert.InDelta(t, 2.0, Slope([]float64{0, math.Inf(1), 4, 6}), 1e-12)
}
