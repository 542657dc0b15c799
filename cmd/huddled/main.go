package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/huddle-im/huddle/internal/config"
	"github.com/huddle-im/huddle/internal/daemon"
	"github.com/huddle-im/huddle/internal/home"
	"go.uber.org/fx"
)

func main() {
	configFlag := flag.String("config", "", "config file path (default ~/.huddle/config.toml)")
	listenFlag := flag.String("listen", "", "listen address (overrides config)")
	flag.Parse()

	configPath := *configFlag
	if configPath == "" {
		configPath = home.ConfigPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *listenFlag != "" {
		cfg.ListenAddr = *listenFlag
	}
	if cfg.TokenSecret == "" {
		fmt.Fprintf(os.Stderr, "error: token_secret not set in %s\n", configPath)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Config: cfg}),
	)

	app.Run()
}
