package main

import (
	"context"
	"os"

	"github.com/paularlott/cli"
	"github.com/paularlott/cli/env"

	"github.com/martinsuchenak/invd/cmd/classes"
	"github.com/martinsuchenak/invd/cmd/client"
	"github.com/martinsuchenak/invd/cmd/object"
	"github.com/martinsuchenak/invd/cmd/rack"
	"github.com/martinsuchenak/invd/cmd/sdh"
	"github.com/martinsuchenak/invd/cmd/server"
	"github.com/martinsuchenak/invd/cmd/sync"
	"github.com/martinsuchenak/invd/cmd/token"
	"github.com/martinsuchenak/invd/internal/log"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists
	env.Load()

	log.Configure("info", "console")

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:         "log-level",
			Usage:        "Log level (trace, debug, info, warn, error)",
			DefaultValue: "info",
			EnvVars:      []string{"INVD_LOG_LEVEL"},
			Global:       true,
		},
		&cli.StringFlag{
			Name:         "log-format",
			Usage:        "Log format (console, json)",
			DefaultValue: "console",
			EnvVars:      []string{"INVD_LOG_FORMAT"},
			Global:       true,
		},
	}

	rootCmd := &cli.Command{
		Name:        "invd",
		Version:     version + " (" + commit + ", " + date + ")",
		Usage:       "Network inventory with SDH topology, rack layout and device sync",
		Description: "Track network equipment, racks and SDH links, and keep them in sync with what devices report",
		Flags:       append(flags, client.Flags()...),
		PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			log.Configure(cmd.GetString("log-level"), cmd.GetString("log-format"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			server.Command(),
			{
				Name:        "object",
				Usage:       "Business object commands",
				Description: "Create, inspect and move inventory objects",
				Commands:    object.Commands(),
			},
			{
				Name:        "classes",
				Usage:       "Class hierarchy commands",
				Description: "Inspect the class hierarchy and list type items",
				Commands:    classes.Commands(),
			},
			{
				Name:        "rack",
				Usage:       "Rack layout commands",
				Description: "Show rack layouts and place devices in racks",
				Commands:    rack.Commands(),
			},
			{
				Name:        "sdh",
				Usage:       "SDH topology commands",
				Description: "Manage transport, container and tributary links",
				Commands:    sdh.Commands(),
			},
			{
				Name:        "sync",
				Usage:       "Device synchronization commands",
				Description: "Synchronize devices and review sync runs",
				Commands:    sync.Commands(),
			},
			{
				Name:        "token",
				Usage:       "API token helpers",
				Description: "Generate hashed API tokens",
				Commands:    token.Commands(),
			},
		},
	}

	if err := rootCmd.Execute(context.Background()); err != nil {
		log.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
