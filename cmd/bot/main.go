package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"support-relay-bot/internal/bot"
	"support-relay-bot/internal/common/config"
	"support-relay-bot/internal/common/keylock"
	"support-relay-bot/internal/common/logger"
	adminredis "support-relay-bot/internal/features/admin/repository/redis"
	adminservice "support-relay-bot/internal/features/admin/service"
	onboardingservice "support-relay-bot/internal/features/onboarding/service"
	relayredis "support-relay-bot/internal/features/relay/repository/redis"
	relayservice "support-relay-bot/internal/features/relay/service"
	topicservice "support-relay-bot/internal/features/topic/service"
	userredis "support-relay-bot/internal/features/user/repository/redis"
	userservice "support-relay-bot/internal/features/user/service"
	apphttp "support-relay-bot/internal/http"
	"support-relay-bot/internal/platform/redis"
	"support-relay-bot/internal/platform/telegram"
	"support-relay-bot/internal/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger.Init("support-relay-bot", cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redis.Open(ctx, fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	client := telegram.NewClient(cfg.Bot.Token)
	me, err := client.GetMe(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to authorize bot")
	}
	logger.Info().Str("username", me.Username).Msg("Authorized bot")

	if err := client.DeleteWebhook(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to delete webhook")
	}
	if err := bot.SetupCommands(ctx, client, cfg.Bot.GroupID); err != nil {
		logger.Error().Err(err).Msg("failed to set bot commands")
	}

	// One lock instance guards user records across every mutating path.
	locks := keylock.New()

	users := userservice.NewService(userredis.NewUserRepository(rdb))
	resolver := topicservice.NewResolver(users, bot.NewForumTopicCreator(client, cfg.Bot.GroupID, cfg.Bot.EmojiID))
	router := relayservice.NewRouter(client, users, resolver, relayredis.NewMappingRepository(rdb), cfg.Bot.GroupID)
	onboarding := onboardingservice.NewService(client, users)
	broadcaster := workers.NewBroadcastWorker(rdb, users, client, locks)
	admin := adminservice.NewService(client, users, adminredis.NewPendingRepository(rdb), broadcaster, locks, cfg.Bot.DevID)

	dispatcher := bot.NewDispatcher(cfg, client, users, router, onboarding, admin, locks)
	health := apphttp.NewHealthServer(cfg.Health.Port, rdb, cfg.Debug)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		broadcaster.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	go func() {
		if err := health.Start(); err != nil {
			logger.Error().Err(err).Msg("health server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	// Stop producing new work before tearing down shared connections.
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := bot.DeleteCommands(shutdownCtx, client, cfg.Bot.GroupID); err != nil {
		logger.Error().Err(err).Msg("failed to delete bot commands")
	}
	if err := client.DeleteWebhook(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to delete webhook")
	}
	if err := health.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to stop health server")
	}
	if err := rdb.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close redis")
	}
	logger.Info().Msg("Shutdown complete")
}
