package main

import (
	"context"

	"github.com/desertthunder/melodex/internal/shared"
	"github.com/urfave/cli/v3"
)

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize config file, database, and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Revert the most recently applied migration instead of migrating",
			},
		},
		Action: r.Setup,
	}
}

// Setup creates the config file if missing, opens the database, and
// applies pending migrations. With --rollback it reverts the most
// recently applied migration instead.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		r.logger.Warnf("skipping config creation: %v", err)
	} else {
		r.logger.Infof("created config file at %s", configPath)
	}

	if err := r.loadConfig(configPath); err != nil {
		return err
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
		r.logger.Infof("rolled back latest migration on %s", r.config.Database.Path)
		return r.writePlain("✓ Rollback complete\n")
	}

	if err := shared.RunMigrations(db); err != nil {
		return err
	}

	r.logger.Infof("database ready at %s", r.config.Database.Path)
	return r.writePlain("✓ Setup complete\n")
}
