// Command gen-ecg generates synthetic AD8232 recordings as chunk maps, either
// to a JSON file or straight into the chunk store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/ecg.report/internal/chunkstore"
	"github.com/banshee-data/ecg.report/internal/config"
	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/banshee-data/ecg.report/internal/ecg/synth"
)

func main() {
	preset := flag.String("preset", synth.PresetNormal, "Recording type: normal, bradycardia, tachycardia, arrhythmia or noisy")
	samples := flag.Int("n", 3600, "Number of samples")
	rate := flag.Float64("rate", 360, "Sample rate in Hz")
	seed := flag.Uint64("seed", 1, "Random seed")
	chunkSize := flag.Int("chunk-size", synth.DefaultChunkSize, "Samples per chunk")
	output := flag.String("o", "", "Write the chunk map to this JSON file")
	push := flag.Bool("push", false, "Upload to the configured chunk store")
	deviceID := flag.String("device", "", "Upload to the per-device path for this id")
	every := flag.Duration("every", 0, "With -push, upload a fresh recording at this interval until interrupted")
	configPath := flag.String("config", config.DefaultConfigPath, "Path to the JSON config file")
	envFile := flag.String("env", ".env", "Optional .env file with environment overrides")
	flag.Parse()

	if *output == "" && !*push {
		log.Fatal("nothing to do: pass -o and/or -push")
	}

	chunks, rPeaks, err := generate(*preset, *samples, *rate, *seed, *chunkSize)
	if err != nil {
		log.Fatalf("failed to generate: %v", err)
	}
	log.Printf("generated %s: %d samples, %d beats, %d chunks", *preset, *samples, rPeaks, len(chunks))

	if *output != "" {
		if err := writeFile(*output, chunks); err != nil {
			log.Fatal(err)
		}
		log.Printf("✓ Created: %s", *output)
	}
	if !*push {
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(*envFile); err != nil {
		log.Fatalf("failed to apply environment: %v", err)
	}
	store := chunkstore.NewClient(cfg.GetChunkStoreURL(), cfg.GetChunkStoreAuth(), cfg.GetFetchTimeout(), nil)
	src := chunkstore.Source{PrimaryPath: cfg.GetPrimaryPath(), FallbackTemplate: cfg.GetFallbackPathTemplate()}
	path := src.PrimaryPath
	if fb := src.FallbackPath(*deviceID); fb != "" {
		path = fb
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for n := *seed; ; n++ {
		if n != *seed {
			if chunks, _, err = generate(*preset, *samples, *rate, n, *chunkSize); err != nil {
				log.Fatalf("failed to generate: %v", err)
			}
		}
		if err := store.Put(ctx, path, chunks); err != nil {
			log.Fatalf("failed to upload: %v", err)
		}
		log.Printf("uploaded %d chunks to %s", len(chunks), path)

		if *every <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(*every):
		}
	}
}

// generate returns the chunk map for one recording and its beat count.
func generate(preset string, n int, rateHz float64, seed uint64, chunkSize int) (map[string]string, int, error) {
	o, err := synth.PresetOptions(preset, rateHz, seed)
	if err != nil {
		return nil, 0, err
	}
	w, peaks, err := synth.Generate(n, o)
	if err != nil {
		return nil, 0, err
	}
	chunks, err := l1chunks.Split(w, chunkSize, 1)
	if err != nil {
		return nil, 0, err
	}
	return chunks, len(peaks), nil
}

func writeFile(path string, chunks map[string]string) error {
	b, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
