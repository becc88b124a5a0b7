package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/cryptoshred/cmd/app/commands"
	"github.com/allisson/cryptoshred/internal/app"
	"github.com/allisson/cryptoshred/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Create the wrapped_keys table for the postgres or mysql key store",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "path",
					Value: "",
					Usage: "Migrations directory (defaults to migrations/<driver> found upward from the working directory)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg, cmd.String("path"))
			},
		},
	}
}
