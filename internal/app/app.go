package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/berkist/linkroyale/core/internal/config"
	http_init "github.com/berkist/linkroyale/core/internal/delivery/http/init"
	http_room "github.com/berkist/linkroyale/core/internal/delivery/http/room"
	http_round "github.com/berkist/linkroyale/core/internal/delivery/http/round"
	http_swagger "github.com/berkist/linkroyale/core/internal/delivery/http/swagger"
	http_vote "github.com/berkist/linkroyale/core/internal/delivery/http/voting"
	ws_room "github.com/berkist/linkroyale/core/internal/delivery/ws/room"
	infra_commentary "github.com/berkist/linkroyale/core/internal/infra/commentary"
	infra_memory_state "github.com/berkist/linkroyale/core/internal/infra/memory/state"
	infra_pg_init "github.com/berkist/linkroyale/core/internal/infra/postgres/init"
	infra_postgres_archive "github.com/berkist/linkroyale/core/internal/infra/postgres/archive"
	infra_redis_init "github.com/berkist/linkroyale/core/internal/infra/redis/init"
	infra_redis_state "github.com/berkist/linkroyale/core/internal/infra/redis/state"
	"github.com/berkist/linkroyale/core/internal/hub"
	"github.com/berkist/linkroyale/core/internal/store"
	usecase_room "github.com/berkist/linkroyale/core/internal/usecase/room"
	usecase_round "github.com/berkist/linkroyale/core/internal/usecase/round"
	usecase_vote "github.com/berkist/linkroyale/core/internal/usecase/vote"
)

// sinkStore is what either backend driver exposes: the Store contract plus
// the commit hook the hub attaches to.
type sinkStore interface {
	store.Store
	SetCommitSink(sink store.CommitSink)
}

func Go(cfg *config.Config) {
	logger := slog.Default()

	var st sinkStore
	switch cfg.State.Backend {
	case "redis":
		redisConn := infra_redis_init.MustEstablishConn(cfg.Redis)
		st = infra_redis_state.New(redisConn)
	default:
		st = infra_memory_state.New()
	}
	logger.Info("state backend selected", "backend", cfg.State.Backend)

	stateHub := hub.New(st, logger)
	st.SetCommitSink(stateHub)

	roundOpts := make([]usecase_round.Option, 0, 2)
	if cfg.Commentary.URL != "" {
		roundOpts = append(roundOpts,
			usecase_round.WithCommentator(infra_commentary.New(cfg.Commentary.URL)))
	}
	if cfg.Postgres.Host != "" {
		pgConn := infra_pg_init.MustEstablishConn(cfg.Postgres)
		archive := infra_postgres_archive.New(pgConn)
		if err := archive.Migrate(context.Background()); err != nil {
			logger.Error("archive migration failed", "error", err)
			os.Exit(1)
		}
		roundOpts = append(roundOpts, usecase_round.WithArchiver(archive))
	}

	roomUC := usecase_room.New(st)
	voteUC := usecase_vote.New(st)
	roundUC := usecase_round.New(st, cfg.Round.Duration, roundOpts...)

	controllerPool := http_init.NewControllerPool()
	controllerPool.Add(http_swagger.New())
	controllerPool.Add(http_room.New(roomUC))
	controllerPool.Add(http_vote.New(voteUC))
	controllerPool.Add(http_round.New(roundUC))
	controllerPool.Add(ws_room.New(stateHub, logger))
	controllerPool.Register()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := controllerPool.RunAll(cfg.HTTP.Port); err != nil {
			logger.Error("http server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := controllerPool.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	<-done
}
