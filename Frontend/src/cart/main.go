package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ahinestrog/rocketshoes/Frontend/src/cart/cartstate"
	"github.com/ahinestrog/rocketshoes/Frontend/src/cart/catalogclient"
	"github.com/ahinestrog/rocketshoes/Frontend/src/cart/notify"
	"github.com/ahinestrog/rocketshoes/Frontend/src/cart/storage"
)

func main() {
	cfg := LoadConfig()
	setupLogger(cfg)

	log.Info().
		Str("http", cfg.HTTPAddr).
		Str("grpc", cfg.GRPCAddr).
		Str("catalog", cfg.CatalogURL).
		Str("store", cfg.Store).
		Msg("starting cart gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		tp, err := initTracerProvider(ctx, cfg.OTLPEndpoint)
		must(err)
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("tracer shutdown")
			}
		}()
	}

	// Store
	store, closeStore, err := storage.Open(ctx, storage.Options{
		Backend:   cfg.Store,
		DBPath:    cfg.DBPath,
		RedisAddr: cfg.RedisAddr,
	})
	must(err)
	defer closeStore()

	// Catalog
	catalog, err := catalogclient.New(cfg.CatalogURL, catalogclient.WithProductCache(cfg.ProductCache))
	must(err)

	// Notifiers
	flash := notify.NewFlash(cfg.FlashSize)
	notifiers := notify.Multi{flash, notify.NewLog(log.Logger)}
	if cfg.RabbitURL != "" {
		rb, err := notify.NewRabbit(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			log.Warn().Err(err).Msg("rabbit unavailable, notifications stay local")
		} else {
			defer rb.Close()
			notifiers = append(notifiers, rb)
		}
	}

	opts := []cartstate.Option{
		cartstate.WithLogger(log.Logger),
		cartstate.WithMessages(cartstate.MessagesFor(cfg.Locale)),
		cartstate.WithStorageKey(cfg.CartKey),
	}
	if cfg.Serialize {
		opts = append(opts, cartstate.WithSerializedMutations())
	}
	if cfg.StrictLoad {
		opts = append(opts, cartstate.WithStrictLoad())
	}
	mgr, err := cartstate.New(ctx, catalog, store, notifiers, opts...)
	must(err)
	log.Info().Int("items", len(mgr.Cart())).Msg("cart loaded")

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewServer(mgr, flash).Routes(cfg.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	grpcSrv, hs := newHealthServer()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc health listening")
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		watchStore(gctx, hs, store, HealthInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Warn().Msg("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("gateway stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("bye")
}

func setupLogger(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogFormat != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
