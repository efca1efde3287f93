// Command ecg-analyse runs the pipeline on a recording file and prints the
// result, optionally writing charts.
//
// Input is either a chunk map (.json) or plain text with one sample per line
// or comma-separated samples.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/ecg.report/internal/classifier"
	"github.com/banshee-data/ecg.report/internal/config"
	"github.com/banshee-data/ecg.report/internal/ecg/display"
	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/banshee-data/ecg.report/internal/ecg/l3beats"
	"github.com/banshee-data/ecg.report/internal/ecg/pipeline"
	"github.com/banshee-data/ecg.report/internal/monitoring"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to the JSON config file")
	classifierURL := flag.String("classifier", "", "Classifier base URL; without it only the heart rate is reported")
	pngOut := flag.String("png", "", "Write a PNG chart to this path")
	htmlOut := flag.String("html", "", "Write an interactive HTML chart to this path")
	showBeats := flag.Bool("beats", false, "List segmented beats")
	beatWidth := flag.Int("beat-width", 0, "Beat window in samples (0 = mean RR interval)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: ecg-analyse [flags] <recording.json|recording.txt>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := monitoring.Init(true); err != nil {
		log.Fatal(err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	opts := pipeline.OptionsFromConfig(cfg)

	rec, err := loadRecording(flag.Arg(0), opts)
	if err != nil {
		log.Fatalf("failed to load recording: %v", err)
	}

	var pred pipeline.Predictor
	if *classifierURL != "" {
		pred = classifier.New(classifier.Options{
			BaseURL:  *classifierURL,
			Timeout:  cfg.GetClassifierTimeout(),
			Attempts: cfg.GetClassifierAttempts(),
			Backoff:  cfg.GetClassifierBackoff(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := report(ctx, os.Stdout, rec, pred, opts); err != nil {
		log.Fatal(err)
	}

	if *showBeats {
		hr := rec.HeartRate(opts)
		writeBeats(os.Stdout, rec.Beats(hr.Peaks, *beatWidth), opts.HeartRateSampleRateHz)
	}

	chart := rec.Chart(filepath.Base(flag.Arg(0)), "", opts)
	if *pngOut != "" {
		if err := writeChart(*pngOut, chart, display.WritePNG); err != nil {
			log.Fatal(err)
		}
	}
	if *htmlOut != "" {
		if err := writeChart(*htmlOut, chart, display.RenderHTML); err != nil {
			log.Fatal(err)
		}
	}
}

// loadRecording reads a chunk map or a plain sample list.
func loadRecording(path string, opts pipeline.Options) (*pipeline.Recording, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var m l1chunks.ChunkMap
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return pipeline.FromChunks(path, m, opts)
	}
	tokens := strings.FieldsFunc(string(b), func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r' || r == ' ' || r == '\t'
	})
	return pipeline.FromChunks(path, l1chunks.ChunkMap{l1chunks.KeyPrefix + "1": strings.Join(tokens, ",")}, opts)
}

// report prints the heart rate, quality flags and, when pred is set, the
// classification.
func report(ctx context.Context, out io.Writer, rec *pipeline.Recording, pred pipeline.Predictor, opts pipeline.Options) error {
	fmt.Fprintf(out, "source:     %s\n", rec.Source)
	fmt.Fprintf(out, "samples:    %d (%.1f s)\n", len(rec.Raw), float64(len(rec.Raw))/opts.HeartRateSampleRateHz)

	if pred == nil {
		hr := rec.HeartRate(opts)
		fmt.Fprintf(out, "heart rate: %d bpm (measured %t, %d peaks)\n", hr.BPM, hr.Measured, len(hr.Peaks))
		if len(rec.Flags) > 0 {
			fmt.Fprintf(out, "flags:      %s\n", strings.Join(rec.Flags, ", "))
		}
		return nil
	}

	a := &pipeline.Analyzer{Classifier: pred, Options: opts}
	an, err := a.Analyze(ctx, rec)
	if err != nil {
		return err
	}
	r := an.Result
	fmt.Fprintf(out, "heart rate: %d bpm (measured %t, %d peaks)\n", r.HeartRateBPM, an.HeartRate.Measured, len(an.HeartRate.Peaks))
	fmt.Fprintf(out, "prediction: %s (%.0f%%)\n", r.Label, r.Confidence*100)
	fmt.Fprintf(out, "risk:       %s\n", r.Risk)
	if len(r.Flags) > 0 {
		fmt.Fprintf(out, "flags:      %s\n", strings.Join(r.Flags, ", "))
	}
	for _, advice := range r.Recommendations {
		fmt.Fprintf(out, "  - %s\n", advice)
	}
	return nil
}

// writeBeats prints one line per beat: peak time, window and amplitude span.
func writeBeats(out io.Writer, beats []l3beats.Beat, rateHz float64) {
	fmt.Fprintf(out, "beats:      %d\n", len(beats))
	for i, b := range beats {
		lo, hi := floats.Min(b.Samples), floats.Max(b.Samples)
		fmt.Fprintf(out, "  %3d  t=%6.3fs  window=[%d,%d)  span=%.3f\n",
			i+1, float64(b.PeakIndex)/rateHz, b.Start, b.Start+len(b.Samples), hi-lo)
	}
}

func writeChart(path string, c display.Chart, render func(io.Writer, display.Chart) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f, c); err != nil {
		f.Close()
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("✓ Created: %s", path)
	return nil
}
