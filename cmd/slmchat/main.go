package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:   "slmchat",
		Usage:  "Chat with hosted small language models and ask questions about your documents",
		Flags:  configFlags(),
		Action: chatAction,
		Commands: []*cli.Command{
			{
				Name:   "tui",
				Usage:  "Start the terminal chat UI (default)",
				Flags:  configFlags(),
				Action: chatAction,
			},
			{
				Name:  "serve",
				Usage: "Start the HTTP and websocket server",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides server.addr)",
					},
				}, configFlags()...),
				Action: serveAction,
			},
			{
				Name:   "models",
				Usage:  "List the configured models",
				Flags:  configFlags(),
				Action: modelsAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// configFlags returns fresh flag values for each command.
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to YAML config file (uses ./config.yaml or ~/.config/slmchat/config.yaml if not provided)",
		},
		&cli.StringFlag{
			Name:  "env",
			Usage: "Path to env file",
			Value: ".env",
		},
	}
}
