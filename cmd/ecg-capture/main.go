// Command ecg-capture reads an AD8232 front end over serial and keeps the
// chunk store updated with the most recent samples.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/ecg.report/internal/chunkstore"
	"github.com/banshee-data/ecg.report/internal/config"
	"github.com/banshee-data/ecg.report/internal/device"
	"github.com/banshee-data/ecg.report/internal/ecg/synth"
	"github.com/banshee-data/ecg.report/internal/monitoring"
	"github.com/banshee-data/ecg.report/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Path to the JSON config file")
	envFile     = flag.String("env", ".env", "Optional .env file with environment overrides")
	portPath    = flag.String("port", "/dev/ttyACM0", "Serial port of the capture board")
	baud        = flag.Int("baud", device.DefaultBaudRate, "Serial baud rate")
	deviceID    = flag.String("device", "", "Device id; uploads to the per-device path instead of the primary path")
	interval    = flag.Duration("interval", 2*time.Second, "How often to publish a snapshot")
	window      = flag.Int("window", device.DefaultWindow, "Samples kept in each snapshot")
	chunkSize   = flag.Int("chunk-size", device.DefaultChunkSize, "Samples per chunk")
	simulate    = flag.String("simulate", "", "Feed a synthetic recording of this preset instead of opening the port")
	adminListen = flag.String("admin-listen", "", "Serve /debug/ecg-tail on this address")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("ecg-capture"))
		return
	}
	if err := monitoring.Init(false); err != nil {
		log.Fatalf("failed to initialise logging: %v", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(*envFile); err != nil {
		log.Fatalf("failed to apply environment: %v", err)
	}
	if cfg.GetChunkStoreURL() == "" {
		log.Fatal("chunk store url is not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := chunkstore.NewClient(cfg.GetChunkStoreURL(), cfg.GetChunkStoreAuth(), cfg.GetFetchTimeout(), nil)
	path := uploadPath(cfg, *deviceID)
	rec := device.NewRecorder(store, path, *chunkSize, *window)

	var wg sync.WaitGroup
	if *simulate != "" {
		port := device.NewMockPort()
		samples, err := simulatedSamples(*simulate, cfg.GetHeartRateSampleRateHz(), *window)
		if err != nil {
			log.Fatalf("simulate: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := device.Simulate(ctx, port, samples, cfg.GetHeartRateSampleRateHz(), nil); err != nil && !errors.Is(err, context.Canceled) {
				monitoring.Logf("simulator stopped: %v", err)
			}
		}()
		err = capture(ctx, device.New(port), rec, &wg)
		wg.Wait()
		exit(err)
		return
	}

	dev, err := device.Open(*portPath, device.PortOptions{BaudRate: *baud})
	if err != nil {
		log.Fatalf("failed to open capture board: %v", err)
	}
	err = capture(ctx, dev, rec, &wg)
	wg.Wait()
	exit(err)
}

func exit(err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("capture failed: %v", err)
	}
	monitoring.Logf("capture stopped")
}

// uploadPath is the per-device path when id is set, else the primary path.
func uploadPath(cfg *config.Config, id string) string {
	src := chunkstore.Source{PrimaryPath: cfg.GetPrimaryPath(), FallbackTemplate: cfg.GetFallbackPathTemplate()}
	if p := src.FallbackPath(id); p != "" {
		return p
	}
	return src.PrimaryPath
}

func simulatedSamples(preset string, rateHz float64, n int) ([]float64, error) {
	o, err := synth.PresetOptions(preset, rateHz, 1)
	if err != nil {
		return nil, err
	}
	w, _, err := synth.Generate(n, o)
	return w, err
}

type lineSource interface {
	Subscribe() (string, <-chan string)
	Monitor(ctx context.Context) error
	Close() error
	AttachAdminRoutes(mux *http.ServeMux)
}

// capture runs the serial monitor and the recorder until ctx ends or the
// port closes. Closing the device ends the subscription, which makes the
// recorder publish one last snapshot.
func capture(ctx context.Context, dev lineSource, rec *device.Recorder, wg *sync.WaitGroup) error {
	_, lines := dev.Subscribe()

	if *adminListen != "" {
		mux := http.NewServeMux()
		dev.AttachAdminRoutes(mux)
		srv := &http.Server{Addr: *adminListen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				monitoring.Logf("admin server: %v", err)
			}
		}()
		defer srv.Close()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := dev.Monitor(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("serial monitor stopped: %v", err)
		}
		dev.Close()
	}()

	// the final flush must outlive the signal that stopped the monitor
	err := rec.Run(context.WithoutCancel(ctx), lines, *interval, nil)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
