package main

import (
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/allisson/cryptoshred/cmd/app/commands"
	"github.com/allisson/cryptoshred/internal/app"
	"github.com/allisson/cryptoshred/internal/config"
	shredderUseCase "github.com/allisson/cryptoshred/internal/shredder/usecase"
)

func getCommands(version string) []*cli.Command {
	cmds := []*cli.Command{}
	cmds = append(cmds, getSystemCommands(version)...)
	cmds = append(cmds, getKeyCommands()...)
	cmds = append(cmds, getRecordCommands()...)
	return cmds
}

// withShredUseCase runs fn against the durable key store configured in the environment.
func withShredUseCase(
	fn func(container *app.Container, useCase shredderUseCase.ShredUseCase) error,
) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := commands.RequireDurableKeyStore(cfg); err != nil {
		return err
	}

	container := app.NewContainer(cfg)
	defer commands.CloseContainer(container, container.Logger())

	useCase, err := container.ShredUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize shred use case: %w", err)
	}
	return fn(container, useCase)
}

