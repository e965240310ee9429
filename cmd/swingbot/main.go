package main

import (
	"context"
	"log"

	"github.com/m3rciful/swingbot/core/bootstrap"
	corecmd "github.com/m3rciful/swingbot/core/cmd"
	coreconfig "github.com/m3rciful/swingbot/core/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        coreconfig.Load,
		Bootstrap: func(ctx context.Context, cfg *coreconfig.Config) (corecmd.App, error) {
			return bootstrap.Run(ctx, bootstrap.Options{Config: cfg})
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
