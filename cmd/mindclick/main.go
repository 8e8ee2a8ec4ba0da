// mindclick turns an EEG headset's attention level into mouse clicks.
//
// It reads "ATT:<n>" records from the headset link, calibrates a threshold
// from a resting baseline, and sends CLICK to the actuator whenever the
// attention value rises above it. Say "calibrate" to recalibrate and
// "stop" to quit.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/teslashibe/go-mindclick/internal/config"
	"github.com/teslashibe/go-mindclick/internal/log"
)

var version = "dev"

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("mindclick"),
		kong.Description("EEG attention to left click, with voice commands."),
		kong.UsageOnError(),
		kong.Vars{"version": version, "config_path": config.DefaultPath},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := kctx.Run(&Globals{ctx: ctx, cli: &cli})
	if err == nil {
		return
	}

	var cerr *config.Error
	if errors.As(err, &cerr) {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	log.Error("mindclick failed", log.Err(err))
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
