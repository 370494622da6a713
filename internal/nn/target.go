package nn

import (
	"fmt"
	"math"
)

type targetKind int

const (
	targetCount targetKind = iota + 1
	targetRatio
)

// ConnectivityTarget states how many input/output feature map pairs a sparse
// layer connects: either an absolute connection count or a sparsity ratio of
// the dense case. Exactly one form is authoritative; the other is derived.
//
// The zero value is unset and fails validation.
type ConnectivityTarget struct {
	kind  targetKind
	count int
	ratio float32
}

// ConnectionCount targets an absolute number of connected feature map pairs.
func ConnectionCount(n int) ConnectivityTarget {
	return ConnectivityTarget{kind: targetCount, count: n}
}

// SparsityRatio targets a fraction of the dense input*output pair count.
func SparsityRatio(r float32) ConnectivityTarget {
	return ConnectivityTarget{kind: targetRatio, ratio: r}
}

// IsSet reports whether the target was built by ConnectionCount or SparsityRatio.
func (t ConnectivityTarget) IsSet() bool {
	return t.kind != 0
}

// Ratio returns the sparsity ratio and true if the target is ratio based.
func (t ConnectivityTarget) Ratio() (float32, bool) {
	return t.ratio, t.kind == targetRatio
}

// Count returns the absolute count and true if the target is count based.
func (t ConnectivityTarget) Count() (int, bool) {
	return t.count, t.kind == targetCount
}

// Resolve returns the effective connection count for the given feature map counts.
//
// A ratio r resolves to int(in*out*r + 0.5), rounding to the nearest pair count.
func (t ConnectivityTarget) Resolve(inputFeatureMapCount, outputFeatureMapCount int) int {
	switch t.kind {
	case targetCount:
		return t.count
	case targetRatio:
		return int(float32(inputFeatureMapCount*outputFeatureMapCount)*t.ratio + 0.5)
	default:
		return 0
	}
}

func (t ConnectivityTarget) validate() error {
	switch t.kind {
	case targetCount:
		return nil
	case targetRatio:
		r := float64(t.ratio)
		if math.IsNaN(r) || r <= 0 || r > 1 {
			return configErrorf("feature_map_connection_sparsity_ratio", t.ratio, "a value in (0, 1]", "")
		}
		return nil
	default:
		return configErrorf("connectivity", "unset", "a connection count or a sparsity ratio", "")
	}
}

// String describes the target the way layer descriptions print it.
func (t ConnectivityTarget) String() string {
	switch t.kind {
	case targetCount:
		return fmt.Sprintf("connections %d", t.count)
	case targetRatio:
		return fmt.Sprintf("sparsity ratio %.5f", t.ratio)
	default:
		return "connections unset"
	}
}
