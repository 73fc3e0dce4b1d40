package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"fec-lake/internal/config"
	"fec-lake/internal/convert"
	"fec-lake/internal/domain"
	"fec-lake/internal/schema"
	"fec-lake/internal/service/pipeline"
	"fec-lake/internal/service/remotesync"
	"fec-lake/internal/storage"
	"fec-lake/internal/verify"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	envFile    string
}

// loadConfig resolves configuration with precedence env > file > built-in.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	if o.envFile != "" {
		if err := config.LoadDotEnv(o.envFile); err != nil {
			return nil, err
		}
	}
	if o.configFile != "" {
		return config.LoadFileWithEnv(o.configFile)
	}
	return config.LoadFromEnv()
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	for _, warn := range cfg.Warnings {
		logger.Warn(warn)
	}
	return logger
}

func loadSchemas(cfg *config.Config) (*schema.Registry, error) {
	if cfg.SchemasFile != "" {
		return schema.LoadFile(cfg.SchemasFile)
	}
	return schema.Default()
}

// app is the wired pipeline and the resources it owns.
type app struct {
	pipeline *pipeline.Pipeline
	schemas  *schema.Registry
	closers  []func() error
}

func (a *app) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	registry, err := loadSchemas(cfg)
	if err != nil {
		return nil, err
	}

	opts := storage.S3Options{
		Bucket:   cfg.Bucket,
		Region:   cfg.Region,
		Endpoint: cfg.Endpoint,
	}
	if cfg.HasCredentials() {
		opts.KeyID = cfg.S3KeyID
		opts.Secret = cfg.S3Secret
	}
	store, err := storage.NewS3Store(opts)
	if err != nil {
		return nil, fmt.Errorf("create object store: %w", err)
	}

	a := &app{schemas: registry}
	var pipelineOpts []pipeline.Option
	if cfg.Verify {
		v, err := verify.OpenInMemory()
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, v.Close)
		pipelineOpts = append(pipelineOpts, pipeline.WithVerifier(v))
	}

	a.pipeline = pipeline.New(
		pipeline.Config{
			RawDataDir: cfg.RawDataDir,
			ParquetDir: cfg.ParquetDir,
			WorkDir:    cfg.WorkDir,
			FailFast:   cfg.FailFast,
		},
		remotesync.NewSyncer(store, logger.With("component", "sync")),
		convert.NewConverter(logger.With("component", "convert")),
		registry,
		logger,
		pipelineOpts...,
	)
	return a, nil
}

// selectJobs applies --only. Every named category must have at least one job.
func selectJobs(cfg *config.Config, only []string) ([]domain.Job, error) {
	jobs := cfg.JobsFor(only...)
	for _, c := range only {
		found := false
		for _, j := range jobs {
			if j.Category == c {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no configured job has category %q", c)
		}
	}
	return jobs, nil
}
