// Command engine is the live-commentary audio engine's composition root:
// it wires config, state, queue, mixer, device, TTS transport, stream
// client and history sink together and runs them under supervision until
// a shutdown signal arrives, following the teacher's cmd/agent/main.go
// wiring and shutdown shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mwzkhalil/comv2/pkg/audio"
	"github.com/mwzkhalil/comv2/pkg/config"
	"github.com/mwzkhalil/comv2/pkg/history"
	"github.com/mwzkhalil/comv2/pkg/logging"
	"github.com/mwzkhalil/comv2/pkg/match"
	"github.com/mwzkhalil/comv2/pkg/orchestrator"
	"github.com/mwzkhalil/comv2/pkg/queue"
	"github.com/mwzkhalil/comv2/pkg/state"
	"github.com/mwzkhalil/comv2/pkg/stream"
	"github.com/mwzkhalil/comv2/pkg/tts"
)

// blockSize is the mixer's fixed processing quantum in frames. The malgo
// callback may request more or fewer frames per call; Tick handles any
// frameCount, but internal gain ramps are paced assuming blocks this size.
const blockSize = 256

// historyFlushDeadline bounds how long shutdown waits for the history
// sink to drain its queue (spec §4.8 / §8).
const historyFlushDeadline = 2 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: config: %v\n", err)
		return 1
	}

	logger, err := logging.NewZapLogger(envOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: logger: %v\n", err)
		return 1
	}

	store, err := state.Open(cfg.StatePath)
	if err != nil {
		logger.Error("engine: opening state store", "error", err)
		return 1
	}
	q := queue.New(store, 0)

	ambience, err := loadAmbienceAsset(cfg, logger)
	if err != nil {
		logger.Error("engine: loading ambience asset", "error", err)
		return 1
	}

	ducking := audio.NewDuckingController(cfg.NominalAmbienceGain, cfg.DuckedAmbienceGain, cfg.DuckRampMS, cfg.SampleRate, blockSize)
	mixer := audio.NewMixer(ambience, ducking, blockSize, logger)

	device, err := audio.OpenDevice(mixer, cfg.SampleRate, logger)
	if err != nil {
		logger.Error("engine: opening playback device", "error", err)
		return 2
	}

	var historySink *history.Sink
	if cfg.SaveAudio {
		historySink, err = history.Open(cfg.AudioHistoryDir, cfg.SampleRate, history.DefaultQueueSize, logger)
		if err != nil {
			logger.Error("engine: opening history sink", "error", err)
			return 1
		}
	}

	fetcher := buildFetcher(cfg)
	matchState := match.New(cfg.MatchID, cfg.TeamA, cfg.TeamB)

	orch := orchestrator.New(q, mixer, fetcher, matchState, historySink, orchestrator.Config{
		TTSTimeout: time.Duration(cfg.TTSTimeoutSeconds) * time.Second,
	}, logger)

	streamClient := stream.New(stream.Config{
		APIBaseURL:       cfg.APIBaseURL,
		AuthToken:        cfg.WSAuthToken,
		MatchID:          cfg.MatchID,
		ReconnectInitial: time.Duration(cfg.ReconnectInitialMS) * time.Millisecond,
		ReconnectMax:     time.Duration(cfg.ReconnectMaxMS) * time.Millisecond,
	}, q, logger)

	if err := device.Start(); err != nil {
		logger.Error("engine: starting playback device", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return streamClient.Run(gctx) })
	group.Go(func() error {
		err := orch.Run(gctx)
		if err == orchestrator.ErrClosed {
			return nil
		}
		return err
	})

	<-gctx.Done()
	logger.Info("engine: shutdown signal received, draining")

	// The stream client stops admitting once gctx is done; closing the queue
	// lets Run observe closure and return.
	q.Close()
	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Warn("engine: component returned error during shutdown", "error", err)
	}

	if err := device.Stop(); err != nil {
		logger.Warn("engine: stopping playback device", "error", err)
	}

	if historySink != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), historyFlushDeadline)
		defer cancel()
		if err := historySink.Close(flushCtx); err != nil {
			logger.Warn("engine: flushing history sink", "error", err)
		}
	}

	logger.Info("engine: shutdown complete")
	return 0
}

// loadAmbienceAsset opens cfg.AmbiencePath if set; a missing path or file
// yields a silent loop rather than a startup failure (spec §4.1).
func loadAmbienceAsset(cfg config.Config, logger logging.Logger) (*audio.AmbienceLoop, error) {
	if cfg.AmbiencePath == "" {
		logger.Warn("engine: no AMBIENCE_PATH configured, playing silence")
		return audio.LoadAmbience(nil, cfg.SampleRate)
	}

	f, err := os.Open(cfg.AmbiencePath)
	if err != nil {
		logger.Warn("engine: ambience asset unavailable, playing silence", "path", cfg.AmbiencePath, "error", err)
		return audio.LoadAmbience(nil, cfg.SampleRate)
	}
	defer f.Close()

	return audio.LoadAmbience(f, cfg.SampleRate)
}

// buildFetcher selects the TTS transport named by cfg.TTSProvider.
// Unrecognized values fall back to the websocket provider, the default.
func buildFetcher(cfg config.Config) tts.Fetcher {
	switch cfg.TTSProvider {
	case "http":
		return tts.NewHTTPProvider(cfg.TTSBaseURL, cfg.TTSAPIKey, cfg.TTSVoiceID)
	default:
		return tts.NewWebsocketProvider(cfg.TTSBaseURL, "/v1/stream", cfg.TTSAPIKey, cfg.TTSVoiceID)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
