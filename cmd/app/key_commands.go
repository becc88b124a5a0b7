package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/cryptoshred/cmd/app/commands"
	"github.com/allisson/cryptoshred/internal/app"
	"github.com/allisson/cryptoshred/internal/config"
	shredderUseCase "github.com/allisson/cryptoshred/internal/shredder/usecase"
)

func kmsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "kms-provider",
			Value:   "",
			Sources: cli.EnvVars("KMS_PROVIDER"),
			Usage:   "KMS provider (localsecrets, gcpkms, awskms, azurekeyvault, hashivault)",
		},
		&cli.StringFlag{
			Name:    "kms-key-uri",
			Value:   "",
			Sources: cli.EnvVars("KMS_KEY_URI"),
			Usage:   "KMS key URI; the key is printed in plaintext when empty",
		},
	}
}

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-master-key",
			Usage: "Generate a new master key and print it as a MASTER_KEYS entry",
			Flags: append([]cli.Flag{
				&cli.UintFlag{
					Name:  "version",
					Value: 1,
					Usage: "Master key version",
				},
			}, kmsFlags()...),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunCreateMasterKey(
					ctx,
					container.KMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Uint("version"),
					cmd.String("kms-provider"),
					cmd.String("kms-key-uri"),
				)
			},
		},
		{
			Name:  "rotate-master-key",
			Usage: "Generate the next master key version and print the updated MASTER_KEYS",
			Flags: kmsFlags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunRotateMasterKey(
					ctx,
					container.KMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("kms-provider"),
					cmd.String("kms-key-uri"),
					cfg.MasterKeys,
				)
			},
		},
		{
			Name:  "rewrap-keys",
			Usage: "Rewrap every stored DEK from a retired master key version to the active one",
			Flags: []cli.Flag{
				&cli.UintFlag{
					Name:     "from-version",
					Aliases:  []string{"f"},
					Required: true,
					Usage:    "Retired master key version to move keys off",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withShredUseCase(func(container *app.Container, useCase shredderUseCase.ShredUseCase) error {
					return commands.RunRewrapKeys(
						ctx,
						useCase,
						container.Logger(),
						commands.DefaultIO().Writer,
						cmd.Uint("from-version"),
					)
				})
			},
		},
	}
}
