package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rlch/norm"
	"github.com/urfave/cli/v3"
)

var ErrNoConnectionURI = errors.New("no connection URI specified (use --uri or .norm.yaml)")

func connectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "uri",
			Usage:   "database connection URI",
			Sources: cli.EnvVars("NORM_URI"),
		},
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Usage:   "database username",
			Sources: cli.EnvVars("NORM_USER"),
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "database password",
			Sources: cli.EnvVars("NORM_PASS"),
		},
		&cli.StringFlag{
			Name:  "database",
			Usage: "database name (defaults to the server default)",
		},
	}
}

// resolveConfig builds a connection config from flags, falling back to the
// nearest .norm.yaml for anything not specified.
func resolveConfig(cmd *cli.Command) (norm.Config, error) {
	cfg := norm.Config{
		URI:      cmd.String("uri"),
		Username: cmd.String("username"),
		Password: cmd.String("password"),
		Database: cmd.String("database"),
	}

	if cfg.URI == "" {
		wd, err := os.Getwd()
		if err != nil {
			return cfg, err
		}

		loaded, err := norm.LoadConfig(wd)
		if err == nil {
			if cfg.URI == "" {
				cfg.URI = loaded.URI
			}

			if cfg.Username == "" {
				cfg.Username = loaded.Username
				cfg.Password = loaded.Password
			}

			if cfg.Database == "" {
				cfg.Database = loaded.Database
			}
		}
	}

	if cfg.URI == "" {
		return cfg, ErrNoConnectionURI
	}

	return cfg, nil
}

func pingCommand() *cli.Command {
	return &cli.Command{
		Name:   "ping",
		Usage:  "Verify database connectivity",
		Flags:  connectionFlags(),
		Action: runPing,
	}
}

func runPing(ctx context.Context, cmd *cli.Command) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	sess, err := norm.NewDriverSession(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() { _ = sess.Close(ctx) }()

	_, err = sess.Run(ctx, "RETURN 1", nil)
	if err != nil {
		return err
	}

	fmt.Printf("ok: %s\n", cfg.URI)

	return nil
}
