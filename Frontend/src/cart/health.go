package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/ahinestrog/rocketshoes/Frontend/src/cart/cartstate"
	"github.com/ahinestrog/rocketshoes/Frontend/src/cart/storage"
)

const healthService = "rocketshoes.cart"

func newHealthServer() (*grpc.Server, *health.Server) {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv, hs
}

// storeStatus pings the store when it can be pinged.
func storeStatus(ctx context.Context, store cartstate.Store) healthpb.HealthCheckResponse_ServingStatus {
	p, ok := store.(storage.Pinger)
	if !ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	if err := p.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("health: store ping failed")
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

// watchStore refreshes the health status until ctx is done.
func watchStore(ctx context.Context, hs *health.Server, store cartstate.Store, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		st := storeStatus(ctx, store)
		hs.SetServingStatus("", st)
		hs.SetServingStatus(healthService, st)

		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
		}
	}
}
