package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/cryptoshred/cmd/app/commands"
	"github.com/allisson/cryptoshred/internal/app"
	shredderUseCase "github.com/allisson/cryptoshred/internal/shredder/usecase"
)

func recordIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "id",
		Aliases:  []string{"i"},
		Required: true,
		Usage:    "Record ID (UUID)",
	}
}

func getRecordCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "shred",
			Usage: "Permanently erase a record by destroying its wrapped DEK",
			Flags: []cli.Flag{recordIDFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withShredUseCase(func(container *app.Container, useCase shredderUseCase.ShredUseCase) error {
					return commands.RunShred(
						ctx,
						useCase,
						container.Logger(),
						commands.DefaultIO().Writer,
						cmd.String("id"),
					)
				})
			},
		},
		{
			Name:  "export-wrapped-key",
			Usage: "Print a record's wrapped DEK for storage outside the key store",
			Flags: []cli.Flag{recordIDFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withShredUseCase(func(_ *app.Container, useCase shredderUseCase.ShredUseCase) error {
					return commands.RunExportWrappedKey(ctx, useCase, commands.DefaultIO().Writer, cmd.String("id"))
				})
			},
		},
		{
			Name:  "restore-wrapped-key",
			Usage: "Re-insert an exported wrapped DEK into the key store",
			Flags: []cli.Flag{
				recordIDFlag(),
				&cli.StringFlag{
					Name:    "wrapped-key",
					Aliases: []string{"k"},
					Usage:   "Exported wrapped key (read from stdin when omitted)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withShredUseCase(func(container *app.Container, useCase shredderUseCase.ShredUseCase) error {
					return commands.RunRestoreWrappedKey(
						ctx,
						useCase,
						container.Logger(),
						commands.DefaultIO(),
						cmd.String("id"),
						cmd.String("wrapped-key"),
					)
				})
			},
		},
	}
}
