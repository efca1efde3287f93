// Command ecg-server serves the ECG analysis API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/ecg.report/internal/api"
	"github.com/banshee-data/ecg.report/internal/chunkstore"
	"github.com/banshee-data/ecg.report/internal/classifier"
	"github.com/banshee-data/ecg.report/internal/config"
	"github.com/banshee-data/ecg.report/internal/db"
	"github.com/banshee-data/ecg.report/internal/ecg/pipeline"
	"github.com/banshee-data/ecg.report/internal/monitoring"
	"github.com/banshee-data/ecg.report/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Path to the JSON config file")
	envFile     = flag.String("env", ".env", "Optional .env file with environment overrides")
	devMode     = flag.Bool("dev", false, "Serve synthetic recordings and a built-in classifier")
	listen      = flag.String("listen", ":8080", "Listen address")
	dbPathFlag  = flag.String("db-path", "", "Database path (overrides config)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("ecg-server"))
		return
	}

	if err := monitoring.Init(*devMode); err != nil {
		log.Fatalf("failed to initialise logging: %v", err)
	}

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	dbPath := cfg.GetDBPath()
	if *dbPathFlag != "" {
		dbPath = *dbPathFlag
	}

	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "migrate":
			if err := db.RunMigrateCommand(flag.Args()[1:], dbPath, os.Stdin, os.Stdout); err != nil {
				log.Fatalf("migrate: %v", err)
			}
			return
		default:
			usage()
			os.Exit(2)
		}
	}

	if cfg.SampleRatesDiffer() {
		monitoring.Warnw("heart rate and display sample rates differ",
			"heart_rate_sample_rate_hz", cfg.GetHeartRateSampleRateHz(),
			"display_sample_rate_hz", cfg.GetDisplaySampleRateHz())
	}

	database, err := db.NewDB(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wired := buildDeps(cfg, database, *devMode)
	if cfg.GetClassifierHealthCheck() {
		probeClassifier(ctx, wired.health)
	}

	mux := api.NewServer(wired.analyzer, database, wired.health, wired.analyzer.Options).ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		log.Fatalf("failed to attach admin routes: %v", err)
	}

	server := &http.Server{
		Addr:              *listen,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		monitoring.Logf("listening on %s (db %s)", *listen, dbPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	monitoring.Logf("graceful shutdown complete")
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: ecg-server [flags] [migrate <action>]\n\nFlags:\n")
	flag.PrintDefaults()
	fmt.Fprintln(out)
	db.PrintMigrateHelp(out)
}

// loadConfig reads the JSON config and applies environment overrides.
func loadConfig(path, envFile string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(envFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

type deps struct {
	analyzer *pipeline.Analyzer
	health   api.HealthChecker
}

// buildDeps wires the pipeline to the chunk store and classifier, or to
// in-process stand-ins in dev mode.
func buildDeps(cfg *config.Config, store pipeline.Store, dev bool) deps {
	opts := pipeline.OptionsFromConfig(cfg)
	src := &chunkstore.Source{
		PrimaryPath:      cfg.GetPrimaryPath(),
		FallbackTemplate: cfg.GetFallbackPathTemplate(),
	}

	if dev {
		mem := chunkstore.NewMemoryStore()
		seedDevRecordings(mem, cfg, opts.HeartRateSampleRateHz)
		src.Store = mem
		clf := devClassifier{}
		return deps{
			analyzer: &pipeline.Analyzer{Source: src, Classifier: clf, Store: store, Options: opts},
			health:   clf,
		}
	}

	src.Store = chunkstore.NewClient(cfg.GetChunkStoreURL(), cfg.GetChunkStoreAuth(), cfg.GetFetchTimeout(), nil)
	clf := classifier.New(classifier.Options{
		BaseURL:  cfg.GetClassifierURL(),
		Timeout:  cfg.GetClassifierTimeout(),
		Attempts: cfg.GetClassifierAttempts(),
		Backoff:  cfg.GetClassifierBackoff(),
	})
	return deps{
		analyzer: &pipeline.Analyzer{Source: src, Classifier: clf, Store: store, Options: opts},
		health:   clf,
	}
}

func probeClassifier(ctx context.Context, hc api.HealthChecker) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	h, err := hc.Health(ctx)
	if err != nil {
		monitoring.Warnw("classifier health check failed", "error", err)
		return
	}
	monitoring.Logf("classifier is %s on %s", h.Status, h.Device)
}
