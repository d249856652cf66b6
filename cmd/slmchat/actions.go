package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"slmchat/internal/bootstrap"
	"slmchat/internal/config"
	"slmchat/internal/logger"
	"slmchat/internal/session"
	"slmchat/internal/tui"
)

func loadConfig(cmd *cli.Command) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if path := cmd.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.LoadEnv(cfg, cmd.String("env")); err != nil {
		return nil, err
	}
	return cfg, nil
}

// chatAction runs the terminal UI. Logs go to the file only so they do not
// corrupt the screen.
func chatAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.NewIsolatedLogger(cfg.Log.File)

	app, err := bootstrap.New(cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	sess := app.LocalSession()
	status := ""
	if sess.HasCredential() {
		status = session.MsgKeyAvailable
	}
	m := tui.New(ctx, sess, cfg.Models, cfg.Defaults, status)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr := cmd.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	log := logger.NewZapLogger(cfg.Log.File, cfg.Log.Production)

	app, err := bootstrap.New(cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Server().Run(ctx)
}

func modelsAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	for i, m := range cfg.Models {
		fmt.Printf("%d. %s (%s)\n", i+1, m.Name, m.ID)
	}
	return nil
}
