// Package httpapi is the public API adapter (C14): chi routing, the trust
// boundary's middleware chain, and the request/response handlers for every
// endpoint in the HTTP surface.
package httpapi

import (
	"context"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"thewire/internal/auth"
	"thewire/internal/config"
	"thewire/internal/coordinator"
	"thewire/internal/database"
	"thewire/internal/fanout"
	"thewire/internal/kvstore"
	"thewire/internal/objectstore"
	"thewire/internal/queue"
	"thewire/internal/ranking"
	"thewire/internal/search"
	"thewire/internal/snowflake"
	"thewire/internal/timeline"
)

// Server bundles every dependency a handler needs to serve a request.
type Server struct {
	cfg *config.Config

	store kvstore.Store
	auth  *auth.Service

	users         *coordinator.UserCoord
	posts         *coordinator.PostCoord
	feeds         *coordinator.FeedCoord
	conns         *coordinator.ConnCoord
	notifications *coordinator.NotificationCoord

	timelineSvc *timeline.Service
	search      *search.Index
	media       *objectstore.Store
	queue       *queue.Queue
	ids         *snowflake.Node

	upgrader websocket.Upgrader
}

// Run loads configuration, wires the full dependency graph, and serves the
// public API until an interrupt or terminate signal arrives.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := kvstore.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer store.Close()
	log.Printf("Connected to Redis at %s", cfg.RedisURL)

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	q, err := queue.New(db)
	if err != nil {
		return fmt.Errorf("initialize queue: %w", err)
	}

	ids, err := snowflake.NewNode(cfg.SnowflakeIssuerID)
	if err != nil {
		return fmt.Errorf("initialize snowflake node: %w", err)
	}

	users := coordinator.NewUserCoord(store, 0)
	posts := coordinator.NewPostCoord(store, 0)
	feeds := coordinator.NewFeedCoord(store, 0)
	conns := coordinator.NewConnCoord()
	notifications := coordinator.NewNotificationCoord(store, ids, 0)

	searchIdx := search.NewIndex(store)
	authSvc := auth.NewService(store, users, searchIdx, ids, cfg)
	timelineSvc := timeline.NewService(store, users, posts, feeds)

	ctx := context.Background()
	mediaStore, err := objectstore.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize media store: %w", err)
	}

	fanoutHandler := fanout.NewHandler(store, users, posts, feeds, conns, notifications)
	fanoutManager := fanout.NewManager(q, fanoutHandler, fanout.DefaultManagerConfig())
	fanoutManager.Start(ctx)
	log.Println("Fanout worker manager started")

	rankingSvc := ranking.NewService(store, posts, ranking.Weights{
		Like:   cfg.RankWeightLike,
		Reply:  cfg.RankWeightReply,
		Repost: cfg.RankWeightRepost,
	})
	rankingSvc.Start(ctx, time.Duration(cfg.RankingInterval)*time.Minute)
	log.Println("Ranking service started")

	s := &Server{
		cfg:           cfg,
		store:         store,
		auth:          authSvc,
		users:         users,
		posts:         posts,
		feeds:         feeds,
		conns:         conns,
		notifications: notifications,
		timelineSvc:   timelineSvc,
		search:        searchIdx,
		media:         mediaStore,
		queue:         q,
		ids:           ids,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *stdhttp.Request) bool { return true },
		},
	}

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	httpServer := &stdhttp.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", addr)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-shutdown:
		log.Println("Shutting down gracefully...")

		fanoutManager.Stop()
		rankingSvc.Stop()
		conns.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Println("Server stopped")
		return nil
	}
}
