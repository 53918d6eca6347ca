package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classquest-service/internal/ai"
	"classquest-service/internal/app"
	"classquest-service/internal/config"
	"classquest-service/internal/domain"
	"classquest-service/internal/infra/memory"
	pginfra "classquest-service/internal/infra/postgres"
	rabbitinfra "classquest-service/internal/infra/rabbit"
	redisinfra "classquest-service/internal/infra/redis"
	"classquest-service/internal/picker"
	"classquest-service/internal/realtime"
	transport "classquest-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the session coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}
	log := logger.WithField("service", "classquest")

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.RosterLoader = memory.NewStaticRosterLoader(sampleClassrooms())
	if pool != nil {
		loader = pginfra.NewRosterLoader(pool)
	}
	rosterTTL := config.TTLDuration(cfg.Roster.TTL, 5*time.Minute)
	rosters := memory.NewRosterRepository(loader, rosterTTL)

	answerTTL := config.TTLDuration(cfg.Answers.TTL, 12*time.Hour)
	var answers app.AnswerStore = memory.NewAnswerStore()
	if redisClient != nil {
		answers = redisinfra.NewAnswerStore(redisClient, answerTTL)
	}

	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	var sessions app.SessionRepository = memory.NewSessionStore()
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
	}

	var gamestate app.GameStateStore = memory.NewGameStateStore()
	if pool != nil {
		gamestate = pginfra.NewGameStateStore(pool)
	}

	var broadcaster realtime.Broadcaster = memory.NewBroadcaster()
	switch {
	case cfg.Rabbit.URL != "":
		conn, err := amqp.Dial(cfg.Rabbit.URL)
		if err != nil {
			return err
		}
		defer conn.Close()
		broadcaster, err = rabbitinfra.NewBroadcaster(conn, log)
		if err != nil {
			return err
		}
	case redisClient != nil:
		broadcaster = redisinfra.NewBroadcaster(redisClient, log)
	}

	tick := config.TTLDuration(cfg.Roulette.TickInterval, picker.DefaultTickInterval)
	roulette := picker.New(tick)

	service := app.NewSessionService(sessions, rosters, answers, gamestate, broadcaster, roulette, log)

	aiKey := cfg.AI.APIKey
	if aiKey == "" {
		aiKey = os.Getenv("AI_API_KEY")
	}
	generator := ai.NewGenerator(cfg.AI.Endpoint, aiKey, log)

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = os.Getenv("AUTH_SECRET")
	}
	if secret == "" {
		log.Warn("auth secret not configured, using insecure development default")
		secret = "dev-secret"
	}
	tokens := transport.NewJWTService(secret)

	handler := transport.NewSessionHandler(service, generator, log)
	wsHandler := transport.NewWSHandler(service, generator, broadcaster, log)
	router := transport.NewRouter(handler, wsHandler, tokens)

	server := &http.Server{
		Addr: ":" + finalPort,
		// Websocket connections are long-lived, so only the header read is bounded.
		ReadHeaderTimeout: 15 * time.Second,
		Handler:           router,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting session coordinator")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleClassrooms provides minimal demo data; the Postgres loader replaces
// this in production.
func sampleClassrooms() (map[string]domain.Classroom, map[string][]domain.Participant) {
	classrooms := map[string]domain.Classroom{
		"demo-classroom": {
			ID:       "demo-classroom",
			Name:     "Demo Classroom",
			JoinCode: "DEMO42",
		},
	}
	rosters := map[string][]domain.Participant{
		"demo-classroom": {
			domain.NewParticipant("s1", "Ana"),
			domain.NewParticipant("s2", "Bruno"),
			domain.NewParticipant("s3", "Carla"),
		},
	}
	return classrooms, rosters
}
