package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/config"
	"github.com/RyanBlaney/sonido-chords/evaluation"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/progression"
	"github.com/RyanBlaney/sonido-chords/segmentation"
	"github.com/RyanBlaney/sonido-chords/transcode"
)

func segmentationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "hop-length", Usage: "Samples per chroma frame"},
		&cli.FloatFlag{Name: "magnitude-threshold", Usage: "Trend gate as a fraction of the reference level"},
		&cli.FloatFlag{Name: "silence", Usage: "Shortest event kept by the smoother, in seconds"},
		&cli.FloatFlag{Name: "window", Usage: "Exponential trend window, in seconds"},
		&cli.FloatFlag{Name: "threshold-fraction", Usage: "Sigmoid threshold as a fraction of the chroma peak"},
		&cli.FloatFlag{Name: "width-fraction", Usage: "Sigmoid width as a fraction of the chroma peak"},
		&cli.IntFlag{Name: "median-window", Usage: "Frames in the row median filter"},
		&cli.StringSliceFlag{Name: "families", Usage: "Enabled chord families (7th, minor-7th, sus2, sus4, major, minor, power)"},
		&cli.StringFlag{Name: "terminal-policy", Usage: "Duration of the final chord (zero, track-end)"},
		&cli.BoolFlag{Name: "no-nn-filter", Usage: "Disable nearest-neighbour outlier suppression"},
		&cli.BoolFlag{Name: "diagnostics", Usage: "Include intermediate matrices in JSON output"},
	}
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Transcribe the chords of one or more audio files",
		ArgsUsage: "<audio file>...",
		Flags: append(segmentationFlags(),
			&cli.IntFlag{Name: "concurrency", Aliases: []string{"j"}, Usage: "Files analyzed in parallel"},
			&cli.StringFlag{Name: "ffmpeg", Usage: "Path to the ffmpeg binary"},
			&cli.IntFlag{Name: "sample-rate", Usage: "Decode sample rate for non-WAV input"},
		),
		Action: runAnalyze,
	}
}

func segmentCommand() *cli.Command {
	return &cli.Command{
		Name:      "segment",
		Usage:     "Segment a chromagram JSON file ({sample_rate, hop_length, chroma})",
		ArgsUsage: "<chromagram.json>",
		Flags:     segmentationFlags(),
		Action:    runSegment,
	}
}

func evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:      "evaluate",
		Usage:     "Score an audio file or a saved JSON result against reference labels",
		ArgsUsage: "<audio file | result.json>",
		Flags: append(segmentationFlags(),
			&cli.StringFlag{Name: "labels", Aliases: []string{"l"}, Usage: "Reference label file", Required: true},
			&cli.StringFlag{Name: "ffmpeg", Usage: "Path to the ffmpeg binary"},
		),
		Action: runEvaluate,
	}
}

// loadConfig reads the config file, applies flag overrides and installs
// the logger
func loadConfig(cmd *cli.Command) (*Config, error) {
	cfg := NewDefaultConfig()
	// validated once, after flags have had their say
	if err := config.ReadWithDefaults(cmd.String("config"), "", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := applyOverrides(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	// stdout is reserved for results
	logger := logging.NewWriterLogger(os.Stderr, os.Stderr, false)
	logger.SetLevel(level)
	logging.SetGlobalLogger(logger)

	return cfg, nil
}

func applyOverrides(cmd *cli.Command, cfg *Config) error {
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("output") {
		cfg.Output = cmd.String("output")
	}
	if cmd.IsSet("concurrency") {
		cfg.Concurrency = int(cmd.Int("concurrency"))
	}
	if cmd.IsSet("ffmpeg") {
		cfg.Decoder.FFmpegPath = cmd.String("ffmpeg")
	}
	if cmd.IsSet("sample-rate") {
		cfg.Decoder.TargetSampleRate = int(cmd.Int("sample-rate"))
	}

	p := &cfg.Segmentation
	if cmd.IsSet("hop-length") {
		p.HopLength = int(cmd.Int("hop-length"))
	}
	if cmd.IsSet("magnitude-threshold") {
		p.MagnitudeThreshold = cmd.Float("magnitude-threshold")
	}
	if cmd.IsSet("silence") {
		p.SilenceSeconds = cmd.Float("silence")
	}
	if cmd.IsSet("window") {
		p.WindowSeconds = cmd.Float("window")
	}
	if cmd.IsSet("threshold-fraction") {
		p.ThresholdFraction = cmd.Float("threshold-fraction")
	}
	if cmd.IsSet("width-fraction") {
		p.WidthFraction = cmd.Float("width-fraction")
	}
	if cmd.IsSet("median-window") {
		p.MedianWindow = int(cmd.Int("median-window"))
	}
	if cmd.IsSet("families") {
		families, err := parseFamilies(cmd.StringSlice("families"))
		if err != nil {
			return err
		}
		p.EnabledFamilies = families
	}
	if cmd.IsSet("terminal-policy") {
		policy, err := progression.ParseTerminalPolicy(cmd.String("terminal-policy"))
		if err != nil {
			return err
		}
		p.TerminalPolicy = policy
	}
	if cmd.Bool("no-nn-filter") {
		p.NNFilter = false
	}
	if cmd.Bool("diagnostics") {
		p.Diagnostics = true
	}
	return nil
}

func parseFamilies(names []string) ([]tonal.ChordQuality, error) {
	var families []tonal.ChordQuality
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			q, err := tonal.ParseQuality(part)
			if err != nil {
				return nil, err
			}
			families = append(families, q)
		}
	}
	return families, nil
}

func newAnalyzer(cfg *Config) (*segmentation.Analyzer, error) {
	provider := chroma.NewCQTProvider(transcode.NewDecoder(&cfg.Decoder))
	return segmentation.NewAnalyzer(provider, cfg.Segmentation)
}

func runAnalyze(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	files := cmd.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("no audio files given")
	}

	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}

	results := make([]*segmentation.Result, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i, file := range files {
		g.Go(func() error {
			result, err := analyzer.Analyze(gctx, file)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return writeResults(os.Stdout, cfg.Output, results)
}

func runSegment(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected one chromagram file")
	}
	path := cmd.Args().First()

	cg, err := readChromagram(path)
	if err != nil {
		return err
	}

	engine, err := segmentation.NewEngine(cfg.Segmentation)
	if err != nil {
		return err
	}

	result, err := engine.Run(ctx, cg)
	if err != nil {
		return fmt.Errorf("segment %s: %w", path, err)
	}
	result.Source = path

	return writeResults(os.Stdout, cfg.Output, []*segmentation.Result{result})
}

func runEvaluate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected one audio or result file")
	}
	path := cmd.Args().First()

	reference, err := evaluation.ParseLabelsFile(cmd.String("labels"))
	if err != nil {
		return err
	}

	var chords []progression.Chord
	if strings.EqualFold(filepath.Ext(path), ".json") {
		chords, err = readResultChords(path)
	} else {
		var analyzer *segmentation.Analyzer
		if analyzer, err = newAnalyzer(cfg); err == nil {
			var result *segmentation.Result
			if result, err = analyzer.Analyze(ctx, path); err == nil {
				chords = result.Chords
			}
		}
	}
	if err != nil {
		return err
	}

	report := evaluation.Compare(reference, evaluation.FromChords(chords))
	if cfg.Output == OutputJSON {
		return writeJSON(os.Stdout, report)
	}

	return writeReport(os.Stdout, report)
}

func writeReport(w io.Writer, report *evaluation.Report) error {
	fmt.Fprintf(w, "accuracy %.1f%% (%.3fs of %.3fs), mean per label %.1f%%\n",
		report.Accuracy*100, report.MatchedDuration, report.ReferenceDuration, report.MeanLabelAccuracy*100)
	for _, label := range slices.Sorted(maps.Keys(report.Labels)) {
		stats := report.Labels[label]
		fmt.Fprintf(w, "  %-16s %5.1f%%  %.3fs\n", label, stats.Accuracy*100, stats.Reference)
	}
	return nil
}

func readChromagram(path string) (*chroma.Chromagram, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chromagram: %w", err)
	}

	var cg chroma.Chromagram
	if err := json.Unmarshal(data, &cg); err != nil {
		return nil, fmt.Errorf("chromagram %s: %w", path, err)
	}
	return &cg, nil
}

func readResultChords(path string) ([]progression.Chord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}

	// accept a single result, a list of results or a bare chord list
	var result segmentation.Result
	if err := json.Unmarshal(data, &result); err == nil && result.Chords != nil {
		return result.Chords, nil
	}
	var results []segmentation.Result
	if err := json.Unmarshal(data, &results); err == nil && len(results) > 0 && results[0].Chords != nil {
		return results[0].Chords, nil
	}
	var chords []progression.Chord
	if err := json.Unmarshal(data, &chords); err != nil {
		return nil, fmt.Errorf("result %s: %w", path, err)
	}
	return chords, nil
}

func writeResults(w io.Writer, format string, results []*segmentation.Result) error {
	if format == OutputJSON {
		if len(results) == 1 {
			return writeJSON(w, results[0])
		}
		return writeJSON(w, results)
	}

	for _, result := range results {
		fmt.Fprintf(w, "# %s (%s, %d chords)\n", result.Source, progression.Stopwatch(result.Duration), len(result.Chords))
		for _, chord := range result.Chords {
			fmt.Fprintf(w, "%s  %-3s %-10s %8.3fs\n", progression.Stopwatch(chord.Start), chord.Tonic, chord.Quality, chord.Duration)
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
