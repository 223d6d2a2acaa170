package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/victortong-git/opensoc-sub009/internal/config"
	"github.com/victortong-git/opensoc-sub009/internal/domain/batch"
	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/method"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/request"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
	logpkg "github.com/victortong-git/opensoc-sub009/internal/logger"
	chiTransport "github.com/victortong-git/opensoc-sub009/internal/transport/chi"
	"github.com/victortong-git/opensoc-sub009/internal/version"
)

// Metadata keys set by the Before hook.
const (
	metaConfig = "config"
	metaLogger = "logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "socretrieve",
		Usage:   "Hybrid retrieval over security records",
		Version: version.Get().String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Environment name, selects config/<env>.yaml (local, dev, prod)",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Explicit config file path (overrides --env lookup)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging level (debug, info, warn, error)",
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
			},
			{
				Name:      "query",
				Usage:     "Run one hybrid search and print the response as JSON",
				ArgsUsage: "<query text>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "scope",
						Usage:    "Organization scope",
						EnvVars:  []string{"SOCRETRIEVE_SCOPE"},
						Required: true,
					},
					&cli.IntFlag{Name: "max-results", Aliases: []string{"n"}, Usage: "Result cap (default 20)"},
					&cli.StringFlag{Name: "method", Usage: "Consolidation method (merge, rank, fallback, weighted)"},
					&cli.StringFlag{Name: "strategy", Usage: "Force a strategy and bypass routing"},
					&cli.StringSliceFlag{Name: "source", Usage: "Restrict to data sources (repeatable)"},
					&cli.Float64Flag{Name: "threshold", Usage: "Semantic similarity threshold in [0, 1]"},
					&cli.BoolFlag{Name: "no-cache", Usage: "Skip the query cache"},
					&cli.BoolFlag{Name: "context", Usage: "Print the rendered context block instead of JSON"},
				},
			},
			{
				Name:      "classify",
				Usage:     "Classify query text and print the classification as JSON",
				ArgsUsage: "<query text>",
				Action:    classifyCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "scope", Usage: "Organization scope"},
				},
			},
			{
				Name:   "ingest",
				Usage:  "Load records from a JSON array file into the record store",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to a JSON array of records",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Records per store write",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Parallel embedding calls",
						Value: 4,
					},
				},
			},
		},
	}
}

// setup loads configuration and builds the logger for every command.
func setup(c *cli.Context) error {
	var (
		cfg config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(c.String("env"))
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := c.String("log-level")
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logpkg.NewLogger(c.String("env"), level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[metaConfig] = &cfg
	c.App.Metadata[metaLogger] = logger
	return nil
}

func teardown(c *cli.Context) error {
	if logger, ok := c.App.Metadata[metaLogger].(*zap.Logger); ok {
		_ = logger.Sync()
	}
	return nil
}

func fromContext(c *cli.Context) (*config.Config, *zap.Logger) {
	return c.App.Metadata[metaConfig].(*config.Config), c.App.Metadata[metaLogger].(*zap.Logger)
}

func serveCommand(c *cli.Context) error {
	cfg, logger := fromContext(c)
	bi := version.Get()
	logger.Info("Starting socretrieve API server",
		zap.String("version", bi.Version),
		zap.String("commit", bi.Commit),
		zap.String("built", bi.Date),
		zap.String("env", c.String("env")),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	if counts, err := comps.records.Count(ctx); err != nil {
		logger.Warn("Could not count stored records", zap.Error(err))
	} else {
		logger.Info("Stored records by type", zap.Any("records", counts))
	}

	server := chiTransport.NewServer(comps.search, comps.classifier, comps.records, comps.health, logger)
	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func queryCommand(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return errors.New("query text is required")
	}
	opts, err := queryOptions(c)
	if err != nil {
		return err
	}

	cfg, logger := fromContext(c)
	comps, err := build(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	resp := comps.search.HybridSearch(c.Context, text, opts)
	if c.Bool("context") {
		shown := resp
		if !resp.Success && resp.Fallback != nil {
			shown = resp.Fallback
		}
		_, err := fmt.Fprintln(c.App.Writer, shown.ContextText())
		return err
	}
	if err := printJSON(c, resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("search failed: %s", resp.Error)
	}
	return nil
}

func queryOptions(c *cli.Context) (request.Options, error) {
	opts := request.Options{
		OrganizationScope:   c.String("scope"),
		MaxResults:          c.Int("max-results"),
		ConsolidationMethod: method.Method(c.String("method")),
		ForceStrategy:       strategy.Strategy(c.String("strategy")),
		DisableCache:        c.Bool("no-cache"),
	}
	if c.IsSet("threshold") {
		th := c.Float64("threshold")
		opts.SimilarityThreshold = &th
	}
	for _, s := range c.StringSlice("source") {
		t, err := record.ParseType(s)
		if err != nil {
			return request.Options{}, err
		}
		opts.DataSources = append(opts.DataSources, t)
	}
	return opts, nil
}

func classifyCommand(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return errors.New("query text is required")
	}
	cfg, logger := fromContext(c)
	comps, err := build(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	return printJSON(c, comps.classifier.Classify(text, c.String("scope")))
}

func ingestCommand(c *cli.Context) error {
	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	var recs []record.Record
	if err := sonic.ConfigStd.Unmarshal(data, &recs); err != nil {
		return fmt.Errorf("decode records: %w", err)
	}

	cfg, logger := fromContext(c)
	comps, err := build(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	results := comps.ingest.
		WithMaxBatchSize(c.Int("batch-size")).
		WithConcurrency(c.Int("concurrency")).
		Ingest(c.Context, recs)

	for _, r := range results {
		if r.Status() == batch.StatusError {
			fmt.Fprintf(c.App.ErrWriter, "%s %s: %v\n", r.RecordType(), r.ID(), r.Err())
		}
	}
	sum := batch.Summarize(results)
	fmt.Fprintf(c.App.Writer, "ingested %d records (%d embedded, %d failed)\n", sum.OK, sum.Embedded, sum.Failed)
	if sum.Failed > 0 {
		return fmt.Errorf("%d records failed", sum.Failed)
	}
	return nil
}

func printJSON(c *cli.Context, v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(c.App.Writer, string(out))
	return err
}
