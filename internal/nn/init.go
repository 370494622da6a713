package nn

import (
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// maxAbsStdDevs bounds initial weights to this many standard deviations.
const maxAbsStdDevs = 100

// NewGenerator creates a random generator for connectivity sampling and weight
// initialization. A negative seed draws a random one.
//
// A generator advances with every draw and must not be shared between
// goroutines without external synchronization.
func NewGenerator(seed int64) *rand.Rand {
	if seed < 0 {
		return rand.New(rand.NewSource(rand.Uint64()))
	}
	return rand.New(rand.NewSource(uint64(seed)))
}

// SparseStdDev returns the initial weight standard deviation for an output
// feature map connected to degree inputs:
//
//	fan = sqrt(degree * outputCount)
//	std = sqrt(1 / (fan * windowVolume))
func SparseStdDev(degree, outputCount, windowVolume int) float32 {
	fan := math32.Sqrt(float32(degree) * float32(outputCount))
	return math32.Sqrt(1.0 / (fan * float32(windowVolume)))
}

// InitSparseWeights fills weights with normally distributed values scaled to
// each output feature map's realized fan-in in layout.
//
// For output o with degree d > 0, windowVolume*d values are drawn from
// N(0, SparseStdDev(d)^2), redrawing any value whose magnitude exceeds
// 100 standard deviations. Values are written contiguously in layout order;
// outputs with d = 0 get no values.
//
// Returns the number of values written.
func InitSparseWeights(weights []float32, layout *SparseLayout, windowVolume int, rng *rand.Rand) (int, error) {
	need := layout.ConnectionCount() * windowVolume
	if len(weights) < need {
		return 0, fmt.Errorf("%w: weight buffer holds %d values, layout needs %d", ErrInvalidLayerData, len(weights), need)
	}

	outputCount := layout.OutputCount()
	written := 0
	for o := 0; o < outputCount; o++ {
		degree := layout.Degree(o)
		if degree == 0 {
			continue
		}

		stdDev := SparseStdDev(degree, outputCount, windowVolume)
		maxAbs := maxAbsStdDevs * stdDev
		nd := distuv.Normal{Mu: 0, Sigma: float64(stdDev), Src: rng}

		count := windowVolume * degree
		for k := 0; k < count; k++ {
			val := float32(nd.Rand())
			for math32.Abs(val) > maxAbs {
				val = float32(nd.Rand())
			}
			weights[written] = val
			written++
		}
	}

	return written, nil
}

// Zeros fills values with zeros.
//
// This is used for bias initialization.
func Zeros(values []float32) {
	for i := range values {
		values[i] = 0
	}
}
