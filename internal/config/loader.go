package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":        {"whisper", "whisper-native", "openai", "mock"},
	"diarizer":   {"pyannote", "none"},
	"embeddings": {"ollama", "openai"},
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, validates the result, and
// applies defaults. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults for omitted fields. It returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.Workers < 0 {
		errs = append(errs, fmt.Errorf("server.workers %d is negative", cfg.Server.Workers))
	} else if cfg.Server.Workers == 0 {
		cfg.Server.Workers = DefaultWorkers
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes %d is negative", cfg.Server.MaxUploadBytes))
	} else if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Pipeline
	if cfg.Pipeline.MinSegmentDuration < 0 {
		errs = append(errs, fmt.Errorf("pipeline.min_segment_duration %.2f is negative", cfg.Pipeline.MinSegmentDuration))
	} else if cfg.Pipeline.MinSegmentDuration == 0 {
		cfg.Pipeline.MinSegmentDuration = DefaultMinSegmentSecs
	}
	if cfg.Pipeline.MergeGap < 0 {
		errs = append(errs, fmt.Errorf("pipeline.merge_gap %.2f is negative", cfg.Pipeline.MergeGap))
	} else if cfg.Pipeline.MergeGap == 0 {
		cfg.Pipeline.MergeGap = DefaultMergeGapSecs
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("diarizer", cfg.Providers.Diarizer.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)

	// Provider availability warnings
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.Embeddings.Name == "" {
		slog.Warn("no embeddings provider configured; chapter detection and semantic search will be unavailable")
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; summaries will be unavailable and chapters will use placeholder titles")
	}

	// Store
	if cfg.Store.Backend == "" {
		if cfg.Store.PostgresDSN != "" {
			cfg.Store.Backend = StorePostgres
		} else {
			cfg.Store.Backend = StoreBadger
		}
	}
	switch {
	case !cfg.Store.Backend.IsValid():
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: postgres, badger", cfg.Store.Backend))
	case cfg.Store.Backend == StorePostgres && cfg.Store.PostgresDSN == "":
		errs = append(errs, errors.New("store.postgres_dsn is required when store.backend is postgres"))
	case cfg.Store.Backend == StoreBadger && cfg.Store.BadgerPath == "":
		errs = append(errs, errors.New("store.badger_path is required when store.backend is badger"))
	}
	if cfg.Store.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("store.embedding_dimensions %d is negative", cfg.Store.EmbeddingDimensions))
	} else if cfg.Store.EmbeddingDimensions == 0 {
		if cfg.Providers.Embeddings.Name != "" {
			slog.Warn("providers.embeddings is configured but store.embedding_dimensions is not set; defaulting to 768")
		}
		cfg.Store.EmbeddingDimensions = DefaultEmbeddingDims
	}
	if cfg.Store.Backend == StoreBadger && cfg.Providers.Embeddings.Name != "" {
		slog.Warn("semantic search is unavailable with the badger backend; chunk embeddings will not be indexed")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
