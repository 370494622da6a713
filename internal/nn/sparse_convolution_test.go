package nn

import (
	"errors"
	"testing"

	"github.com/born-ml/sparseconv/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newScenarioLayer creates the 3x3, 4 -> 4, 8-connection layer used across tests.
func newScenarioLayer(t *testing.T) *SparseConvolution {
	t.Helper()
	l, err := NewSparseConvolution(SparseConvolutionConfig{
		Name:                  "conv1",
		WindowSizes:           []int{3, 3},
		InputFeatureMapCount:  4,
		OutputFeatureMapCount: 4,
		Target:                ConnectionCount(8),
		Bias:                  true,
	})
	require.NoError(t, err)
	return l
}

func TestSparseConvolution_Defaults(t *testing.T) {
	l := newScenarioLayer(t)

	assert.Equal(t, "SparseConvolution", l.TypeName())
	assert.Equal(t, "conv1", l.InstanceName())
	assert.Equal(t, []int{0, 0}, l.LeftPadding())
	assert.Equal(t, []int{0, 0}, l.RightPadding())
	assert.Equal(t, []int{1, 1}, l.Strides())
	assert.Equal(t, 8, l.ConnectionCount())
	assert.Equal(t, 9, l.WindowVolume())
	assert.True(t, l.HasBias())
}

func TestSparseConvolution_GeneratedName(t *testing.T) {
	a, err := NewSparseConvolution(SparseConvolutionConfig{
		WindowSizes:           []int{3},
		InputFeatureMapCount:  2,
		OutputFeatureMapCount: 2,
		Target:                ConnectionCount(2),
	})
	require.NoError(t, err)
	b, err := NewSparseConvolution(SparseConvolutionConfig{
		WindowSizes:           []int{3},
		InputFeatureMapCount:  2,
		OutputFeatureMapCount: 2,
		Target:                ConnectionCount(2),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, a.InstanceName())
	assert.NotEqual(t, a.InstanceName(), b.InstanceName())
}

func TestSparseConvolution_AccessorsReturnCopies(t *testing.T) {
	l := newScenarioLayer(t)

	w := l.WindowSizes()
	w[0] = 100
	assert.Equal(t, []int{3, 3}, l.WindowSizes())
}

func TestSparseConvolution_RatioTarget(t *testing.T) {
	tests := []struct {
		name  string
		ratio float32
		want  int
	}{
		{"half", 0.5, 8},
		{"rounds to nearest", 0.3, 5}, // 16*0.3 = 4.8
		{"dense", 1, 16},
		{"quarter", 0.25, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewSparseConvolution(SparseConvolutionConfig{
				WindowSizes:           []int{3, 3},
				InputFeatureMapCount:  4,
				OutputFeatureMapCount: 4,
				Target:                SparsityRatio(tt.ratio),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.ConnectionCount())

			ratio, ok := l.Target().Ratio()
			assert.True(t, ok)
			assert.InDelta(t, tt.ratio, ratio, 1e-7)
		})
	}
}

func TestSparseConvolution_ConfigErrors(t *testing.T) {
	valid := func() SparseConvolutionConfig {
		return SparseConvolutionConfig{
			WindowSizes:           []int{3, 3},
			InputFeatureMapCount:  4,
			OutputFeatureMapCount: 4,
			Target:                ConnectionCount(8),
		}
	}

	tests := []struct {
		name   string
		modify func(cfg *SparseConvolutionConfig)
		field  string
	}{
		{"zero window", func(c *SparseConvolutionConfig) { c.WindowSizes = []int{3, 0} }, "window_sizes[1]"},
		{"zero inputs", func(c *SparseConvolutionConfig) { c.InputFeatureMapCount = 0 }, "input_feature_map_count"},
		{"zero outputs", func(c *SparseConvolutionConfig) { c.OutputFeatureMapCount = 0 }, "output_feature_map_count"},
		{"unset target", func(c *SparseConvolutionConfig) { c.Target = ConnectivityTarget{} }, "connectivity"},
		{"zero ratio", func(c *SparseConvolutionConfig) { c.Target = SparsityRatio(0) }, "feature_map_connection_sparsity_ratio"},
		{"ratio above one", func(c *SparseConvolutionConfig) { c.Target = SparsityRatio(1.5) }, "feature_map_connection_sparsity_ratio"},
		{"fewer connections than inputs", func(c *SparseConvolutionConfig) {
			c.InputFeatureMapCount = 8
			c.Target = ConnectionCount(6)
		}, "feature_map_connection_count"},
		{"fewer connections than outputs", func(c *SparseConvolutionConfig) {
			c.OutputFeatureMapCount = 8
			c.Target = ConnectionCount(6)
		}, "feature_map_connection_count"},
		{"more than dense", func(c *SparseConvolutionConfig) { c.Target = ConnectionCount(17) }, "feature_map_connection_count"},
		{"left padding too large", func(c *SparseConvolutionConfig) { c.LeftPadding = []int{3, 0} }, "left_zero_padding[0]"},
		{"negative right padding", func(c *SparseConvolutionConfig) { c.RightPadding = []int{0, -1} }, "right_zero_padding[1]"},
		{"zero stride", func(c *SparseConvolutionConfig) { c.Strides = []int{1, 0} }, "strides[1]"},
		{"padding dimension count", func(c *SparseConvolutionConfig) { c.LeftPadding = []int{1} }, "left_zero_padding"},
		{"stride dimension count", func(c *SparseConvolutionConfig) { c.Strides = []int{1, 1, 1} }, "strides"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)

			_, err := NewSparseConvolution(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration))

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestSparseConvolution_ZeroWindowMessage(t *testing.T) {
	_, err := NewSparseConvolution(SparseConvolutionConfig{
		WindowSizes:           []int{3, 0},
		InputFeatureMapCount:  4,
		OutputFeatureMapCount: 4,
		Target:                ConnectionCount(8),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window_sizes[1] = 0")
	assert.Contains(t, err.Error(), "window dimension may not be zero")
}

func TestSparseConvolution_OutputConfiguration(t *testing.T) {
	l := newScenarioLayer(t)

	out, err := l.OutputConfiguration(NewLayerConfiguration(4, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, 4, out.FeatureMapCount)
	assert.Equal(t, tensor.Shape{3, 3}, out.DimensionSizes)

	again, err := l.OutputConfiguration(NewLayerConfiguration(4, 5, 5))
	require.NoError(t, err)
	assert.True(t, again.Equal(out), "repeated call: got %s, want %s", again, out)
}

func TestSparseConvolution_OutputConfigurationPaddedStrided(t *testing.T) {
	l, err := NewSparseConvolution(SparseConvolutionConfig{
		WindowSizes:           []int{3, 3},
		LeftPadding:           []int{1, 1},
		RightPadding:          []int{1, 1},
		Strides:               []int{2, 2},
		InputFeatureMapCount:  4,
		OutputFeatureMapCount: 4,
		Target:                ConnectionCount(8),
	})
	require.NoError(t, err)

	out, err := l.OutputConfiguration(NewLayerConfiguration(4, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, out.DimensionSizes)
}

func TestSparseConvolution_OutputConfigurationErrors(t *testing.T) {
	l := newScenarioLayer(t)

	tests := []struct {
		name  string
		input LayerConfiguration
	}{
		{"feature map mismatch", NewLayerConfiguration(3, 5, 5)},
		{"dimension mismatch", NewLayerConfiguration(4, 5)},
		{"input smaller than window", NewLayerConfiguration(4, 5, 2)},
		{"zero input size", NewLayerConfiguration(4, 0, 5)},
		{"negative input size", NewLayerConfiguration(4, 5, -1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.OutputConfiguration(tt.input)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestSparseConvolution_InputConfiguration(t *testing.T) {
	t.Run("unit stride inverts exactly", func(t *testing.T) {
		l := newScenarioLayer(t)
		for size := 3; size < 12; size++ {
			in := NewLayerConfiguration(4, size, size+1)
			out, err := l.OutputConfiguration(in)
			require.NoError(t, err)

			back, err := l.InputConfiguration(out)
			require.NoError(t, err)
			assert.True(t, back.Equal(in), "size %d: got %s, want %s", size, back, in)
		}
	})

	t.Run("strided inverse maps back to the same output", func(t *testing.T) {
		l, err := NewSparseConvolution(SparseConvolutionConfig{
			WindowSizes:           []int{3, 3},
			LeftPadding:           []int{1, 1},
			RightPadding:          []int{1, 1},
			Strides:               []int{2, 2},
			InputFeatureMapCount:  3,
			OutputFeatureMapCount: 5,
			Target:                ConnectionCount(6),
		})
		require.NoError(t, err)

		for size := 2; size < 12; size++ {
			out, err := l.OutputConfiguration(NewLayerConfiguration(3, size, size))
			require.NoError(t, err)

			back, err := l.InputConfiguration(out)
			require.NoError(t, err)
			assert.Equal(t, 3, back.FeatureMapCount)
			assert.LessOrEqual(t, back.DimensionSizes[0], size, "inverse is the smallest matching input")
			if size > 2 {
				smaller, err := l.OutputConfiguration(NewLayerConfiguration(3, back.DimensionSizes[0]-1, back.DimensionSizes[1]-1))
				require.NoError(t, err)
				assert.False(t, smaller.Equal(out), "size %d: one less than the inverse still maps to %s", size, out)
			}

			again, err := l.OutputConfiguration(back)
			require.NoError(t, err)
			assert.True(t, again.Equal(out))
		}
	})

	t.Run("rejects empty output", func(t *testing.T) {
		l := newScenarioLayer(t)
		_, err := l.InputConfiguration(NewLayerConfiguration(4, 0, 3))
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("rejects non-positive reconstructed input", func(t *testing.T) {
		tests := []struct {
			name    string
			left    int
			right   int
			output  int
			wantErr bool
		}{
			{"padding exceeds window", 2, 2, 1, true},
			{"padding consumes window", 2, 1, 1, true},
			{"single input remains", 1, 1, 1, false},
			{"larger output absorbs padding", 2, 2, 3, false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				l, err := NewSparseConvolution(SparseConvolutionConfig{
					WindowSizes:           []int{3},
					LeftPadding:           []int{tt.left},
					RightPadding:          []int{tt.right},
					InputFeatureMapCount:  2,
					OutputFeatureMapCount: 2,
					Target:                ConnectionCount(2),
				})
				require.NoError(t, err)

				in, err := l.InputConfiguration(NewLayerConfiguration(2, tt.output))
				if tt.wantErr {
					require.ErrorIs(t, err, ErrInvalidConfiguration)
					var cfgErr *ConfigError
					require.ErrorAs(t, err, &cfgErr)
					assert.Equal(t, "input size of dimension 0", cfgErr.Field)
					return
				}
				require.NoError(t, err)
				assert.GreaterOrEqual(t, in.DimensionSizes[0], 1)

				out, err := l.OutputConfiguration(in)
				require.NoError(t, err)
				assert.Equal(t, tt.output, out.DimensionSizes[0])
			})
		}
	})
}

func TestSparseConvolution_FlopsPerEntry(t *testing.T) {
	l := newScenarioLayer(t)
	input := NewLayerConfiguration(4, 5, 5)

	for _, action := range []Action{ActionForward, ActionBackwardData, ActionBackwardWeights} {
		flops, err := l.FlopsPerEntry(input, action)
		require.NoError(t, err)
		assert.InDelta(t, 9*8*2*9, flops, 0, action.String())
	}

	flops, err := l.FlopsPerEntry(input, Action(0))
	require.NoError(t, err)
	assert.Zero(t, flops)

	noBias, err := NewSparseConvolution(SparseConvolutionConfig{
		WindowSizes:           []int{3, 3},
		InputFeatureMapCount:  4,
		OutputFeatureMapCount: 4,
		Target:                ConnectionCount(8),
	})
	require.NoError(t, err)
	flops, err = noBias.FlopsPerEntry(input, ActionForward)
	require.NoError(t, err)
	assert.InDelta(t, 9*(8*2*9-1), flops, 0)
}

func TestSparseConvolution_DataConfig(t *testing.T) {
	l := newScenarioLayer(t)

	assert.Equal(t, []int{72, 4}, l.DataConfig())
	assert.Equal(t, []int{8, 5}, l.CustomDataConfig())
	assert.Equal(t, []int{0}, l.WeightDecayPartIDs())

	parts := l.DataConfigurations()
	require.Len(t, parts, 2)
	assert.Equal(t, 8, parts[0].OutputFeatureMapCount)
	assert.Equal(t, tensor.Shape{3, 3}, parts[0].Dimensions)
	assert.Equal(t, 4, parts[1].OutputFeatureMapCount)
}

func TestSparseConvolution_ParameterStrings(t *testing.T) {
	tests := []struct {
		name string
		cfg  SparseConvolutionConfig
		want []string
	}{
		{
			name: "plain",
			cfg: SparseConvolutionConfig{
				WindowSizes: []int{3, 3}, InputFeatureMapCount: 4, OutputFeatureMapCount: 4,
				Target: ConnectionCount(8), Bias: true,
			},
			want: []string{"3x3, fm 4x4", "connections 8"},
		},
		{
			name: "padded strided without bias",
			cfg: SparseConvolutionConfig{
				WindowSizes: []int{3, 3}, LeftPadding: []int{1, 1}, RightPadding: []int{1, 1}, Strides: []int{2, 2},
				InputFeatureMapCount: 4, OutputFeatureMapCount: 4, Target: ConnectionCount(8),
			},
			want: []string{"3x3, fm 4x4, pad 1x1, stride 2x2, w/out bias", "connections 8"},
		},
		{
			name: "asymmetric padding with ratio",
			cfg: SparseConvolutionConfig{
				WindowSizes: []int{3, 3}, LeftPadding: []int{1, 0}, RightPadding: []int{2, 0},
				InputFeatureMapCount: 8, OutputFeatureMapCount: 8, Target: SparsityRatio(0.25), Bias: true,
			},
			want: []string{"3x3, fm 8x8, pad 1_2x0", "sparsity ratio 0.25000"},
		},
		{
			name: "fully connected",
			cfg: SparseConvolutionConfig{
				InputFeatureMapCount: 3, OutputFeatureMapCount: 2, Target: ConnectionCount(3), Bias: true,
			},
			want: []string{"fc, fm 3x2", "connections 3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewSparseConvolution(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.ParameterStrings())
		})
	}
}

func TestSparseConvolution_Clone(t *testing.T) {
	l := newScenarioLayer(t)

	c, ok := l.Clone().(*SparseConvolution)
	require.True(t, ok)
	assert.Equal(t, l.String(), c.String())
	assert.Equal(t, l.InstanceName(), c.InstanceName())

	c.windowSizes[0] = 5
	assert.Equal(t, []int{3, 3}, l.WindowSizes())
}

func TestLayerConfiguration_String(t *testing.T) {
	assert.Equal(t, "4 fm, 28x28", NewLayerConfiguration(4, 28, 28).String())
	assert.Equal(t, "10 fm", NewLayerConfiguration(10).String())
	assert.Equal(t, 4*28*28, NewLayerConfiguration(4, 28, 28).NeuronCount())
}
