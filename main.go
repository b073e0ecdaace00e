package main

import (
	"embed"
	"log/slog"
	"os"

	"github.com/chazu/koga/pkg/config"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	cfg, err := config.LoadOptional(os.Getenv("KOGA_CONFIG"))
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if level, err := cfg.SlogLevel(); err == nil {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}

	app, err := NewAppWithConfig(cfg)
	if err != nil {
		slog.Error("create app", "error", err)
		os.Exit(1)
	}

	err = wails.Run(&options.App{
		Title:     "koga",
		Width:     cfg.Canvas.Width + 320,
		Height:    cfg.Canvas.Height + 120,
		MinWidth:  800,
		MinHeight: 600,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup: app.startup,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		slog.Error("wails", "error", err)
		os.Exit(1)
	}
}
