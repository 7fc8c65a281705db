package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/melodex/internal/repositories"
	"github.com/desertthunder/melodex/internal/server"
	"github.com/desertthunder/melodex/internal/services"
	"github.com/desertthunder/melodex/internal/shared"
	"github.com/desertthunder/melodex/internal/spotify"
	"github.com/urfave/cli/v3"
)

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Serve,
	}
}

// Serve wires the services together and runs the HTTP server until
// interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}
	if err := shared.RunMigrations(db); err != nil {
		return err
	}

	auth, err := spotify.NewAuthenticator(r.config.Credentials.Spotify, shared.WithLogger(r.logger, "component", "auth"))
	if err != nil {
		return err
	}

	gateway := spotify.NewGateway(spotify.GatewayOpts{
		Auth:   auth,
		Logger: shared.WithLogger(r.logger, "component", "gateway"),
	})

	spotifyService := services.NewSpotifyService(auth, gateway, shared.WithLogger(r.logger, "component", "spotify"))
	userService := services.NewUserService(repositories.NewUserRepository(db), spotifyService, shared.WithLogger(r.logger, "component", "users"))

	router := server.NewBasicRouter()
	router.Use(
		server.RequestLogger(shared.WithLogger(r.logger, "component", "http")),
		server.RateLimit(r.config.Server.RateLimit, r.config.Server.RateBurst),
	)
	server.NewHandlers(userService, spotifyService, shared.WithLogger(r.logger, "component", "http")).Register(router)

	srv := &http.Server{
		Addr:    r.config.Server.Addr(),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		r.logger.Infof("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		r.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
