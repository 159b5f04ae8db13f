package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AnkitKumarMitra/Discordia/internal/config"
	"github.com/AnkitKumarMitra/Discordia/internal/fanout"
	"github.com/AnkitKumarMitra/Discordia/internal/handler"
	"github.com/AnkitKumarMitra/Discordia/internal/hub"
	"github.com/AnkitKumarMitra/Discordia/internal/kafka"
	"github.com/AnkitKumarMitra/Discordia/internal/registry"
	"github.com/AnkitKumarMitra/Discordia/internal/service"
	"github.com/AnkitKumarMitra/Discordia/internal/store"
	"github.com/AnkitKumarMitra/Discordia/pkg/database"
	pkgjwt "github.com/AnkitKumarMitra/Discordia/pkg/jwt"
	pkglog "github.com/AnkitKumarMitra/Discordia/pkg/log"
	"github.com/AnkitKumarMitra/Discordia/pkg/pubsub"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	pkglog.Init(cfg.Log)
	l := pkglog.L()

	instanceID := cfg.Instance.ID
	if instanceID == "" {
		instanceID = uuid.New().String()
	}
	l = l.With().Str(pkglog.FieldInstance, instanceID).Logger()

	l.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting live service")

	if cfg.Auth.JWTSecret == "" {
		l.Fatal().Msg("auth.jwt_secret is required")
	}
	verifier := pkgjwt.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	// Message store
	db, err := database.New(&cfg.Database)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect to database")
	}
	msgStore, err := store.NewGormStore(db)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to initialize message store")
	}
	l.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")

	// Backplane
	ps, err := pubsub.NewRedisPubSub(cfg.Redis.RedisConfig)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer ps.Close()
	l.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")

	// Cross-instance presence directory
	directory, err := registry.NewRedisDirectory(cfg.Redis, instanceID)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to initialize presence directory")
	}
	defer directory.Close()

	// Message archive (optional)
	var archiver kafka.MessageArchiver
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to initialize kafka producer")
		}
		defer producer.Close()
		archiver = producer
		l.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
	}

	// Hub and fan-out
	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run()

	broadcaster := fanout.NewFanout(wsHub, ps, instanceID)
	subscriber := fanout.NewSubscriber(wsHub, ps, instanceID)

	reg := registry.NewMemoryRegistry(wsHub)

	chatSvc := service.NewChatService(wsHub, broadcaster, msgStore, archiver)
	voiceSvc := service.NewVoiceService(wsHub, broadcaster, reg, msgStore)

	wsHandler := handler.NewWSHandler(wsHub, chatSvc, voiceSvc, reg, directory, verifier, cfg.WebSocket)

	mux := http.NewServeMux()
	wsHandler.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	directory.StartHeartbeat(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Info().Str("addr", server.Addr).Msg("live service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return subscriber.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()

		l.Info().Msg("shutting down live service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		l.Error().Err(err).Msg("live service exited with error")
		os.Exit(1)
	}

	l.Info().Msg("live service stopped")
}
