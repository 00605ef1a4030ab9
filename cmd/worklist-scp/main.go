// Command worklist-scp serves a Modality Worklist (C-FIND) and Modality
// Performed Procedure Step (N-CREATE / N-SET) SCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/caio-sobreiro/dicomworklist/config"
	"github.com/caio-sobreiro/dicomworklist/httpapi"
	"github.com/caio-sobreiro/dicomworklist/mpps"
	"github.com/caio-sobreiro/dicomworklist/server"
	"github.com/caio-sobreiro/dicomworklist/services"
	"github.com/caio-sobreiro/dicomworklist/source"
	"github.com/caio-sobreiro/dicomworklist/types"
	"github.com/caio-sobreiro/dicomworklist/worklist"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:           "worklist-scp",
		Short:         "DICOM Modality Worklist and MPPS SCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile, cmd.Flags())
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			logger, err := cfg.NewLogger(os.Stdout)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, logger); err != nil {
				logger.Error().Err(err).Msg("worklist SCP stopped")
				return err
			}
			logger.Info().Msg("worklist SCP stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "optional file of KEY=value settings")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	src, closeSource, err := newSource(ctx, cfg, loc, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	cache := source.NewCache(src,
		source.WithInterval(cfg.RefreshInterval),
		source.WithLogger(logger.With().Str("component", "worklist").Logger()),
	)
	if err := cache.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial worklist load failed, serving empty worklist until the next refresh")
	}

	matcher := worklist.Matcher{Location: loc}
	tracker := mpps.NewTracker(cache, store, logger)
	registry := newRegistry(cache, matcher, tracker)

	srv := server.New(cfg.AETitle, registry,
		server.WithLogger(logger),
		server.WithReadTimeout(cfg.ReadTimeout),
		server.WithWriteTimeout(cfg.WriteTimeout),
		server.WithMaxPDULength(cfg.MaxPDULength),
		server.WithStrictCalledAE(cfg.StrictCalledAE),
	)
	ln, err := net.Listen("tcp", cfg.ListenAddress())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress(), err)
	}
	defer ln.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cache.Run(gctx)
	})
	g.Go(func() error {
		err := srv.Serve(gctx, ln)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if cfg.HTTPAddr != "" {
		api := httpapi.New(cache, tracker, matcher, logger.With().Str("component", "httpapi").Logger())
		g.Go(func() error {
			logger.Info().Str("address", cfg.HTTPAddr).Msg("HTTP API listening")
			return httpapi.Serve(gctx, api, cfg.HTTPAddr)
		})
	}

	logger.Info().
		Str("source", cfg.WorklistSource).
		Str("mpps_store", cfg.MPPSStore).
		Dur("refresh_interval", cfg.RefreshInterval).
		Msg("worklist SCP starting")
	return g.Wait()
}

func newRegistry(entries worklist.Snapshot, matcher worklist.Matcher, tracker services.ProcedureTracker) *services.Registry {
	registry := services.NewRegistry()
	registry.RegisterHandler(types.CEchoRQ, services.NewEchoService())
	registry.RegisterStreamingHandler(types.CFindRQ, services.NewWorklistService(entries, matcher))

	mppsService := services.NewMPPSService(tracker)
	registry.RegisterHandler(types.NCreateRQ, mppsService)
	registry.RegisterHandler(types.NSetRQ, mppsService)
	return registry
}

func newSource(ctx context.Context, cfg *config.Config, loc *time.Location, logger zerolog.Logger) (worklist.Source, func(), error) {
	noop := func() {}
	switch cfg.WorklistSource {
	case config.SourcePostgres:
		pool, err := source.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, err
		}
		return source.NewPostgres(pool, cfg.DBLookback), pool.Close, nil
	case config.SourceDicomDir:
		return source.NewDirectory(cfg.WorklistDir, loc, logger), noop, nil
	case config.SourceHTTP:
		return source.NewHTTP(cfg.WorklistURL, cfg.HTTPRetryMax, logger), noop, nil
	case config.SourceStatic:
		return source.NewDemo(loc), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown worklist source %q", cfg.WorklistSource)
}

func newStore(ctx context.Context, cfg *config.Config) (mpps.Store, func(), error) {
	if cfg.MPPSStore != config.StoreRedis {
		return mpps.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
	}
	return mpps.NewRedisStore(client, cfg.RedisKey), func() { client.Close() }, nil
}
