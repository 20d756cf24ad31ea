package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/findtime/findtime/pkg/findtime/auth"
	"github.com/findtime/findtime/pkg/findtime/config"
	"github.com/findtime/findtime/pkg/findtime/database"
	"github.com/findtime/findtime/pkg/findtime/logging"
	"github.com/findtime/findtime/pkg/findtime/models"
	"github.com/findtime/findtime/pkg/findtime/server"
)

func main() {
	app := &cli.App{
		Name:  "findtime-server",
		Usage: "Group calendar scheduling API.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "HTTP port, overrides PORT"},
			&cli.StringFlag{Name: "db-dsn", Usage: "database DSN, overrides FINDTIME_DB_DSN"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
		},
		Action: serve,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("findtime-server failed")
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP API (default).",
		Action: serve,
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations and exit.",
		Action: func(c *cli.Context) error {
			if _, err := setup(c); err != nil {
				return err
			}
			logrus.Info("database migrations completed")
			return nil
		},
	}
}

// setup loads configuration, configures logging and auth, and opens and
// migrates the database.
func setup(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if port := c.String("port"); port != "" {
		cfg.Port = port
	}
	if dsn := c.String("db-dsn"); dsn != "" {
		cfg.DBDSN = dsn
	}

	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}
	auth.Configure(cfg.JWTSecret, cfg.JWTTTL)

	if err := database.Connect(cfg.DBDriver, cfg.DBDSN); err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := models.AutoMigrate(database.GetDB()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := server.EnsureAdminExists(database.GetDB()); err != nil {
		return nil, fmt.Errorf("ensuring admin user: %w", err)
	}
	return cfg, nil
}

func serve(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.RateLimitEnabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(c.Context).Err(); err != nil {
			logrus.WithError(err).Warn("redis unreachable, rate limiter will fail open")
		}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := server.New(database.GetDB(), cfg, rdb)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Handler(engine, cfg),
	}

	go func() {
		logrus.WithField("port", cfg.Port).Info("starting findtime server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
