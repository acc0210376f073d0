// hvac-bridge subscribes to room temperatures over MQTT and switches each
// room's HVAC on or off through the legacy HVAC REST API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/janael-pinheiro/hvac-bridge/pkg/bridge"
	"github.com/janael-pinheiro/hvac-bridge/pkg/logging"
	"github.com/janael-pinheiro/hvac-bridge/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var logLevel string

	flagSet := pflag.NewFlagSet("hvac-bridge", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", os.Getenv("HVAC_BRIDGE_CONFIG"), "path to the YAML configuration file")
	flagSet.StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	conf, err := utils.LoadBridgeConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		conf.LogLevel = logLevel
	}

	logger := logging.NewLogrus(conf.LogLevel, conf.LogFormat, os.Stderr)
	log := logger.Get("main")
	log.WithField("rooms", conf.Rooms).Info("starting hvac bridge")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return bridge.New(conf, logger).Run(ctx)
}
