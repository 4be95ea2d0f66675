// Command soundscribe is the main entry point for the soundscribe
// transcription server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/soundscribe/soundscribe/internal/config"
	"github.com/soundscribe/soundscribe/internal/health"
	"github.com/soundscribe/soundscribe/internal/job"
	"github.com/soundscribe/soundscribe/internal/media"
	"github.com/soundscribe/soundscribe/internal/observe"
	"github.com/soundscribe/soundscribe/internal/pipeline"
	"github.com/soundscribe/soundscribe/internal/resilience"
	"github.com/soundscribe/soundscribe/internal/server"
	"github.com/soundscribe/soundscribe/internal/store"
	badgerstore "github.com/soundscribe/soundscribe/internal/store/badger"
	pgstore "github.com/soundscribe/soundscribe/internal/store/postgres"
	"github.com/soundscribe/soundscribe/pkg/provider/diarizer"
	"github.com/soundscribe/soundscribe/pkg/provider/diarizer/pyannote"
	"github.com/soundscribe/soundscribe/pkg/provider/embeddings"
	ollamaembed "github.com/soundscribe/soundscribe/pkg/provider/embeddings/ollama"
	oaembed "github.com/soundscribe/soundscribe/pkg/provider/embeddings/openai"
	"github.com/soundscribe/soundscribe/pkg/provider/llm"
	"github.com/soundscribe/soundscribe/pkg/provider/llm/anyllm"
	"github.com/soundscribe/soundscribe/pkg/provider/stt"
	sttmock "github.com/soundscribe/soundscribe/pkg/provider/stt/mock"
	oastt "github.com/soundscribe/soundscribe/pkg/provider/stt/openai"
	"github.com/soundscribe/soundscribe/pkg/provider/stt/whisper"
	"github.com/soundscribe/soundscribe/pkg/timeline"
	"github.com/soundscribe/soundscribe/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// API keys may live in a local .env during development; a missing file
	// is not an error.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "soundscribe: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "soundscribe: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so the config watcher can adjust it at
	// runtime.
	var logLevel slog.LevelVar
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}))
	slog.SetDefault(logger)

	slog.Info("soundscribe starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"store_backend", cfg.Store.Backend,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "soundscribe",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Store ─────────────────────────────────────────────────────────────────
	st, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "err", err)
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("store close error", "err", err)
		}
	}()

	// ── Media processor ───────────────────────────────────────────────────────
	var mediaOpts []media.Option
	if cfg.Media.FFmpegPath != "" {
		mediaOpts = append(mediaOpts, media.WithFFmpegPath(cfg.Media.FFmpegPath))
	}
	if cfg.Media.YtDlpPath != "" {
		mediaOpts = append(mediaOpts, media.WithYtDlpPath(cfg.Media.YtDlpPath))
	}
	if cfg.Media.CookieFile != "" {
		mediaOpts = append(mediaOpts, media.WithCookieFile(cfg.Media.CookieFile))
	}
	processor, err := media.New(cfg.Media.WorkDir, mediaOpts...)
	if err != nil {
		slog.Error("failed to initialise media processor", "err", err)
		return 1
	}

	// ── Pipeline and job manager ──────────────────────────────────────────────
	pl, err := pipeline.New(pipeline.Config{
		Media:              processor,
		Transcriber:        providers.stt,
		Diarizer:           providers.diarizer,
		Embedder:           providers.embedder,
		LLM:                providers.llm,
		Store:              st,
		MinSegmentDuration: cfg.Pipeline.MinSegmentDuration,
		MergeGap:           cfg.Pipeline.MergeGap,
		Vocabulary:         cfg.Pipeline.Vocabulary,
	})
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		return 1
	}

	jobs := job.New(st, pl.Run, job.WithWorkers(cfg.Server.Workers))
	jobs.Start(ctx)
	defer jobs.Stop()

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			logLevel.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level updated", "level", diff.NewLogLevel)
		}
		if diff.PipelineChanged {
			pl.SetThresholds(diff.NewPipeline.MinSegmentDuration, diff.NewPipeline.MergeGap)
			slog.Info("pipeline thresholds updated",
				"min_segment_duration", diff.NewPipeline.MinSegmentDuration,
				"merge_gap", diff.NewPipeline.MergeGap,
			)
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv, err := server.New(server.Config{
		Jobs:           jobs,
		Store:          st,
		Embedder:       providers.embedder,
		UploadDir:      filepath.Join(cfg.Media.WorkDir, "uploads"),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Health:         health.New(storeChecker(st)),
	})
	if err != nil {
		slog.Error("failed to build server", "err", err)
		return 1
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)
		var err error
		if cfg.Server.TLS != nil {
			err = httpSrv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// providers holds the instantiated provider set for the pipeline.
type providerSet struct {
	stt      stt.Transcriber
	diarizer diarizer.Provider
	embedder embeddings.Provider
	llm      llm.Provider
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if ffmpeg := optString(entry.Options, "ffmpeg_path"); ffmpeg != "" {
			opts = append(opts, whisper.WithFFmpegPath(ffmpeg))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []oastt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		return oastt.New(entry.APIKey, entry.Model, opts...)
	})

	// "mock" answers every transcription with a canned transcript. Useful
	// for trying the API surface without a speech model.
	reg.RegisterSTT("mock", func(config.ProviderEntry) (stt.Transcriber, error) {
		return &sttmock.Transcriber{
			TranscribeResult: &stt.Result{
				Text: "This is a mock transcript. Configure a real speech to text provider for actual transcription.",
				Segments: []types.Segment{
					{
						Interval: timeline.Interval{Start: 0, End: 4},
						Text:     "This is a mock transcript.",
					},
					{
						Interval: timeline.Interval{Start: 4, End: 9},
						Text:     "Configure a real speech to text provider for actual transcription.",
					},
				},
				Language: "en",
			},
			ModelIDValue: "mock",
		}, nil
	})

	// ── Diarizer ──────────────────────────────────────────────────────────────

	reg.RegisterDiarizer("pyannote", func(entry config.ProviderEntry) (diarizer.Provider, error) {
		var opts []pyannote.Option
		if entry.Model != "" {
			opts = append(opts, pyannote.WithModel(entry.Model))
		}
		if n := optInt(entry.Options, "num_speakers"); n > 0 {
			opts = append(opts, pyannote.WithNumSpeakers(n))
		}
		return pyannote.New(entry.BaseURL, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	// All hosted backends share the same pattern: optional APIKey + BaseURL.

	for _, providerName := range []string{
		"openai", "anthropic", "gemini", "deepseek", "mistral", "groq",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})
}

// buildProviders instantiates all providers named in cfg. The transcriber is
// mandatory; the optional providers log and stay nil so their pipeline stages
// degrade instead of blocking startup.
//
// Remote transcribers and LLMs run behind circuit breakers so that a dead
// endpoint fails jobs fast instead of making every worker wait out a timeout.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providerSet, error) {
	ps := &providerSet{}
	fbCfg := resilience.FallbackConfig{}

	p, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	ps.stt = resilience.NewSTTFallback(p, cfg.Providers.STT.Name, fbCfg)
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	if name := cfg.Providers.Diarizer.Name; name != "" && name != "none" {
		d, err := reg.CreateDiarizer(cfg.Providers.Diarizer)
		if err != nil {
			slog.Warn("diarizer unavailable, transcripts will be unlabeled", "name", name, "err", err)
		} else {
			ps.diarizer = d
			slog.Info("provider created", "kind", "diarizer", "name", name)
		}
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		e, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			slog.Warn("embeddings unavailable, chapters and search disabled", "name", name, "err", err)
		} else {
			ps.embedder = e
			slog.Info("provider created", "kind", "embeddings", "name", name)
		}
	}

	if name := cfg.Providers.LLM.Name; name != "" {
		l, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			slog.Warn("llm unavailable, summaries and chapter titles disabled", "name", name, "err", err)
		} else {
			ps.llm = resilience.NewLLMFallback(l, name, fbCfg)
			slog.Info("provider created", "kind", "llm", "name", name)
		}
	}

	return ps, nil
}

// openStore opens the configured persistence backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		return pgstore.New(ctx, cfg.Store.PostgresDSN, cfg.Store.EmbeddingDimensions)
	case config.StoreBadger:
		return badgerstore.New(cfg.Store.BadgerPath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// storeChecker probes the persistence backend for the readiness endpoint.
func storeChecker(st store.Store) health.Checker {
	return health.Checker{
		Name: "store",
		Check: func(ctx context.Context) error {
			if p, ok := st.(interface{ Ping(context.Context) error }); ok {
				return p.Ping(ctx)
			}
			// Backends without a ping answer a lookup instead; a miss
			// still proves the database is readable.
			_, err := st.GetJob(ctx, "readiness-probe")
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		},
	}
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer value from a provider Options map[string]any.
// YAML decodes whole numbers as int.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	n, _ := opts[key].(int)
	return n
}
