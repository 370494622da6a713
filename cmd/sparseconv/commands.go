package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/born-ml/sparseconv/internal/nn"
	"github.com/born-ml/sparseconv/internal/serialization"
	"github.com/born-ml/sparseconv/internal/stats"
	"github.com/born-ml/sparseconv/internal/tensor"
	"github.com/chewxy/math32"
	"golang.org/x/exp/rand"
)

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parseFlags parses args and treats -h as success.
func parseFlags(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadRecord reads a JSON layer record from path and decodes it into a sparse convolution.
func loadRecord(path string) (*nn.SparseConvolution, error) {
	if path == "" {
		return nil, errors.New("-record is required")
	}
	//nolint:gosec // G304: record path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	rec, err := nn.ParseLayerRecord(data)
	if err != nil {
		return nil, err
	}
	return decodeSparse(rec)
}

func decodeSparse(rec nn.LayerRecord) (*nn.SparseConvolution, error) {
	layer, err := nn.DecodeLayer(rec)
	if err != nil {
		return nil, err
	}
	conv, ok := layer.(*nn.SparseConvolution)
	if !ok {
		return nil, fmt.Errorf("layer %s has type %s, expected %s", layer.InstanceName(), layer.TypeName(), nn.SparseConvolutionTypeName)
	}
	return conv, nil
}

func runDescribe(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("describe", stderr)
	recordPath := fs.String("record", "", "layer record JSON file")
	input := fs.String("input", "", "input spatial size, e.g. 28x28")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	conv, err := loadRecord(*recordPath)
	if err != nil {
		return err
	}

	describeLayer(stdout, conv)
	if *input != "" {
		return describeShapes(stdout, conv, *input)
	}
	return nil
}

func describeLayer(w io.Writer, conv *nn.SparseConvolution) {
	fmt.Fprintf(w, "layer       %s (%s)\n", conv.InstanceName(), conv.TypeName())
	fmt.Fprintf(w, "parameters  %s\n", strings.Join(conv.ParameterStrings(), ", "))
	fmt.Fprintf(w, "data        %v\n", conv.DataConfig())
	fmt.Fprintf(w, "custom data %v\n", conv.CustomDataConfig())
	for i, part := range conv.DataConfigurations() {
		fmt.Fprintf(w, "part %d      %d -> %d fm, window %s\n",
			i, part.InputFeatureMapCount, part.OutputFeatureMapCount, part.Dimensions)
	}
}

// describeShapes prints the output configuration and cost for an input of the given spatial size.
func describeShapes(w io.Writer, conv *nn.SparseConvolution, spatial string) error {
	dims, err := tensor.ParseShape(spatial)
	if err != nil {
		return fmt.Errorf("invalid -input: %w", err)
	}
	input := nn.NewLayerConfiguration(conv.InputFeatureMapCount(), dims...)

	output, err := conv.OutputConfiguration(input)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "input       %s\n", input)
	fmt.Fprintf(w, "output      %s\n", output)

	for _, action := range []nn.Action{nn.ActionForward, nn.ActionBackwardData, nn.ActionBackwardWeights} {
		flops, err := conv.FlopsPerEntry(input, action)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "flops       %s %.0f\n", action, flops)
	}
	return nil
}

func runInit(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("init", stderr)
	recordPath := fs.String("record", "", "layer record JSON file")
	seed := fs.Int64("seed", 1, "generator seed")
	out := fs.String("out", "", "output .born file")
	input := fs.String("input", "", "input spatial size, e.g. 28x28")
	maxMargin := fs.Int("max-margin", 0, "largest degree cap relaxation (0 = automatic)")
	verbose := fs.Bool("v", false, "log connectivity details")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if *out == "" {
		return errors.New("-out is required")
	}

	logger := newLogger(stderr, *verbose)

	conv, err := loadRecord(*recordPath)
	if err != nil {
		return err
	}

	// A negative seed is resolved here so the file records the seed it was built from.
	if *seed < 0 {
		*seed = int64(rand.Uint64() >> 1)
		logger.Info("drew random seed", "seed", *seed)
	}
	rng := nn.NewGenerator(*seed)
	data, report, err := conv.RandomizeWithOptions(rng, nn.ConnectivityOptions{
		MaxMargin: *maxMargin,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	outMin, outMax, inMin, inMax, err := degreeRange(conv, data.Layout)
	if err != nil {
		return err
	}
	logger.Info("connectivity generated",
		"layer", conv.InstanceName(),
		"connections", conv.ConnectionCount(),
		"output_degree", fmt.Sprintf("%d..%d", outMin, outMax),
		"input_degree", fmt.Sprintf("%d..%d", inMin, inMax),
		"margin", report.Margin,
		"passes", report.Passes,
		"overflow", report.UsedOverflow,
		"reassigned", report.Reassigned)

	if *input != "" {
		if err := describeShapes(stdout, conv, *input); err != nil {
			return err
		}
	}

	record, err := conv.Record().Marshal()
	if err != nil {
		return err
	}
	stateDict, err := data.StateDict()
	if err != nil {
		return err
	}
	metadata := map[string]string{
		serialization.MetadataLayerRecord: string(record),
		serialization.MetadataSeed:        strconv.FormatInt(*seed, 10),
	}
	if err := serialization.WriteFile(*out, stateDict, conv.TypeName(), metadata); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "wrote %s: %s, %d connections\n", *out, conv.InstanceName(), conv.ConnectionCount())
	return nil
}

// degreeRange returns the smallest and largest output and input degree of layout.
func degreeRange(conv *nn.SparseConvolution, layout *nn.SparseLayout) (outMin, outMax, inMin, inMax int, err error) {
	m, err := layout.Matrix(conv.InputFeatureMapCount())
	if err != nil {
		return 0, 0, 0, 0, err
	}
	outMin, outMax = minMax(m.OutputDegrees())
	inMin, inMax = minMax(m.InputDegrees())
	return outMin, outMax, inMin, inMax, nil
}

func minMax(values []int) (lo, hi int) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

// loadContainer reads a layer file and rebuilds the layer and its data from it.
func loadContainer(path string) (*serialization.BornReader, *nn.SparseConvolution, *nn.SparseConvolutionData, error) {
	if path == "" {
		return nil, nil, nil, errors.New("-in is required")
	}
	reader, err := serialization.NewBornReader(path)
	if err != nil {
		return nil, nil, nil, err
	}

	conv, data, err := decodeContainer(reader)
	if err != nil {
		_ = reader.Close()
		return nil, nil, nil, err
	}
	return reader, conv, data, nil
}

func decodeContainer(reader *serialization.BornReader) (*nn.SparseConvolution, *nn.SparseConvolutionData, error) {
	recordJSON, ok := reader.Metadata()[serialization.MetadataLayerRecord]
	if !ok {
		return nil, nil, fmt.Errorf("no %s metadata in file", serialization.MetadataLayerRecord)
	}
	rec, err := nn.ParseLayerRecord([]byte(recordJSON))
	if err != nil {
		return nil, nil, err
	}
	conv, err := decodeSparse(rec)
	if err != nil {
		return nil, nil, err
	}
	if layerType := reader.Header().LayerType; layerType != conv.TypeName() {
		return nil, nil, fmt.Errorf("file stores layer type %s but record describes %s", layerType, conv.TypeName())
	}

	stateDict, err := reader.ReadStateDict()
	if err != nil {
		return nil, nil, err
	}
	data, err := nn.LoadSparseConvolutionData(conv, stateDict)
	if err != nil {
		return nil, nil, err
	}
	return conv, data, nil
}

func runInspect(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("inspect", stderr)
	in := fs.String("in", "", "input .born file")
	perFM := fs.Bool("per-fm", false, "print statistics for every feature map")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	reader, conv, data, err := loadContainer(*in)
	if err != nil {
		return err
	}
	defer reader.Close()

	describeLayer(stdout, conv)

	outMin, outMax, inMin, inMax, err := degreeRange(conv, data.Layout)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "connections %d (output degree %d..%d, input degree %d..%d)\n",
		data.Layout.ConnectionCount(), outMin, outMax, inMin, inMax)
	fmt.Fprintf(stdout, "checksum    %s\n", reader.Checksum())
	if seed, ok := reader.Metadata()[serialization.MetadataSeed]; ok {
		fmt.Fprintf(stdout, "seed        %s\n", seed)
	}

	partStats, err := parameterStats(conv, data)
	if err != nil {
		return err
	}
	for _, p := range data.Parameters() {
		fmStats := partStats[p.Name()]
		fmt.Fprintf(stdout, "%-11s %s\n", p.Name(), summarize(fmStats))
		if *perFM {
			for m, s := range fmStats {
				fmt.Fprintf(stdout, "  fm %-6d %s\n", m, s)
			}
		}
	}
	return nil
}

// parameterStats computes per feature map statistics of every parameter part,
// one feature map per part row as given by DataConfigurations.
func parameterStats(conv *nn.SparseConvolution, data *nn.SparseConvolutionData) (map[string][]stats.FeatureMapStats, error) {
	params := data.Parameters()
	parts := conv.DataConfigurations()
	if len(params) != len(parts) {
		return nil, fmt.Errorf("layer %s has %d parameter parts, data holds %d", conv.InstanceName(), len(parts), len(params))
	}

	configs := make(map[string]nn.LayerConfiguration, len(parts))
	values := make(map[string][]float32, len(parts))
	for i, part := range parts {
		configs[params[i].Name()] = nn.NewLayerConfiguration(part.OutputFeatureMapCount, part.Dimensions...)
		values[params[i].Name()] = params[i].Data()
	}

	agg := stats.NewAggregator(configs)
	if err := agg.Write(values); err != nil {
		return nil, err
	}
	return agg.Stats(), nil
}

// summarize folds per feature map statistics of equally sized feature maps into one.
func summarize(fmStats []stats.FeatureMapStats) stats.FeatureMapStats {
	if len(fmStats) == 0 {
		return stats.FeatureMapStats{}
	}

	res := stats.FeatureMapStats{Min: math32.Inf(1), Max: math32.Inf(-1)}
	var avgSq float32
	for _, s := range fmStats {
		res.Average += s.Average
		avgSq += s.StdDev*s.StdDev + s.Average*s.Average
		res.Min = math32.Min(res.Min, s.Min)
		res.Max = math32.Max(res.Max, s.Max)
	}
	n := float32(len(fmStats))
	res.Average /= n
	res.StdDev = math32.Sqrt(math32.Max(0, avgSq/n-res.Average*res.Average))
	return res
}

func runExport(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("export", stderr)
	in := fs.String("in", "", "input .born file")
	out := fs.String("out", "", "output .safetensors file")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if *out == "" {
		return errors.New("-out is required")
	}

	reader, conv, data, err := loadContainer(*in)
	if err != nil {
		return err
	}
	defer reader.Close()

	stateDict, err := data.StateDict()
	if err != nil {
		return err
	}
	metadata := make(map[string]string, len(reader.Metadata())+1)
	for k, v := range reader.Metadata() {
		metadata[k] = v
	}
	metadata["layer_type"] = conv.TypeName()

	if err := serialization.WriteSafeTensors(*out, stateDict, metadata); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported %s to %s\n", conv.InstanceName(), *out)
	return nil
}
