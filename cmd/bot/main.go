package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ekoval/pairbot/internal/config"
	"github.com/ekoval/pairbot/internal/directory"
	"github.com/ekoval/pairbot/internal/listener"
	"github.com/ekoval/pairbot/internal/repository/redis"
	"github.com/ekoval/pairbot/internal/repository/sqlite"
	"github.com/ekoval/pairbot/internal/service"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	// Setup logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if cfg.Logging.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Info().
		Int64("group_id", cfg.Bot.GroupID).
		Str("db_path", cfg.Bot.DBPath).
		Strs("fields", cfg.Bot.Fields).
		Msg("Starting matchmaking bot")

	// Initialize database
	db, err := sqlite.Open(cfg.Bot.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()
	selections := sqlite.NewSelectionRepository(db)

	// Initialize Redis profile cache (optional)
	var cache *redis.ProfileCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		cache = redis.NewProfileCache(redisClient)
	}

	// Initialize directory client and the group session used for outbound
	// messages.
	client := directory.NewHTTPClient(cfg.Bot.APIBaseURL, cfg.Bot.APIVersion)
	group, err := client.OpenSession(context.Background(), cfg.Bot.GroupToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open group session")
	}

	dialog := service.NewDialog(selections, group, client, cache, cfg.Bot.Fields)
	poller := listener.New(client, dialog, cfg.Bot.GroupToken, cfg.Bot.GroupID, cfg.Bot.PollWait)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Listener failed")
	}

	log.Info().Msg("Bot stopped")
}
