package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/colortap/go/internal/balancer"
	"github.com/mcdev12/colortap/go/internal/config"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	config.SetupLogging(cfg.Log)

	lbCfg := cfg.Balancer
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", lbCfg.ListenPort))
	if err != nil {
		log.Fatal().Err(err).Int("port", lbCfg.ListenPort).Msg("failed to bind listener")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := balancer.NewPool(lbCfg.Backends)
	prober := balancer.NewProber(pool, clockwork.NewRealClock(), lbCfg.ProbeInterval, lbCfg.ProbeTimeout)
	go prober.Run(ctx)

	relayCfg := balancer.DefaultConfig()
	relayCfg.ReadTimeout = lbCfg.ReadTimeout
	relayCfg.IdleTimeout = lbCfg.IdleTimeout
	relayCfg.ShutdownGrace = lbCfg.ShutdownGrace
	relayCfg.AcceptRate = lbCfg.AcceptRate

	server := balancer.NewServer(pool, relayCfg)
	if err := server.Serve(ctx, ln); err != nil {
		log.Error().Err(err).Msg("load balancer stopped with error")
	}

	st := server.Stats()
	log.Info().
		Uint64("accepted", st.Accepted).
		Uint64("rejected", st.Rejected).
		Msg("load balancer shutdown complete")
}
