package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/teslashibe/go-mindclick/internal/config"
	"github.com/teslashibe/go-mindclick/internal/log"
	"github.com/teslashibe/go-mindclick/pkg/console"
	"github.com/teslashibe/go-mindclick/pkg/mindclick"
	"github.com/teslashibe/go-mindclick/pkg/serialport"
	"github.com/teslashibe/go-mindclick/pkg/voice"
)

// CLI is the command tree.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"${config_path}"`
	Verbose bool             `short:"v" help:"Enable debug logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serial SerialFlags `embed:""`

	Run       RunCmd       `cmd:"" default:"withargs" help:"Click on attention spikes, with voice commands (default)"`
	Monitor   MonitorCmd   `cmd:"" help:"Print attention values only"`
	Calibrate CalibrateCmd `cmd:"" help:"Run one calibration and print the threshold"`
	Click     ClickCmd     `cmd:"" help:"Send one click command to the actuator"`
	Ports     PortsCmd     `cmd:"" help:"List serial ports"`
}

// SerialFlags override the serial settings of the config file.
type SerialFlags struct {
	Headset  string `help:"Headset serial device"`
	Actuator string `help:"Actuator serial device (defaults to the headset device)"`
	Baud     int    `help:"Baud rate for both links"`
}

// Globals is bound to every command's Run.
type Globals struct {
	ctx context.Context
	cli *CLI
}

func (g *Globals) loadConfig() (*config.Config, error) {
	path := g.cli.Config
	if path == config.DefaultPath {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	f := g.cli.Serial
	if f.Headset != "" {
		if f.Actuator == "" && cfg.SharedPort() {
			cfg.Actuator.Device = f.Headset
		}
		cfg.Headset.Device = f.Headset
	}
	if f.Actuator != "" {
		cfg.Actuator.Device = f.Actuator
	}
	if f.Baud > 0 {
		cfg.Headset.Baud = f.Baud
		cfg.Actuator.Baud = f.Baud
	}
	if g.cli.Verbose {
		cfg.LogLevel = "debug"
	}
	log.Init(cfg.LogLevel)
	return cfg, nil
}

// run builds an App for mode, runs it and shuts it down.
func (g *Globals) run(cfg *config.Config, opts mindclick.Options) error {
	opts.Logger = log.L()
	app, err := mindclick.New(cfg, opts)
	if err != nil {
		return err
	}
	defer app.Shutdown()

	if err := app.Init(g.ctx); err != nil {
		return err
	}
	return app.Run(g.ctx)
}

// RunCmd is the full system.
type RunCmd struct {
	Speech    string        `help:"Speech backend: google, console or none"`
	Dashboard string        `help:"Status API listen address, e.g. :8080"`
	TieBreak  string        `help:"Command that wins when a phrase has both keywords"`
	Duration  time.Duration `help:"Calibration window"`
	Samples   bool          `help:"Print every attention value"`
}

func (r *RunCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if r.Speech != "" {
		cfg.Voice.Backend = r.Speech
	}
	if r.Dashboard != "" {
		cfg.Dashboard.Addr = r.Dashboard
	}
	if r.TieBreak != "" {
		cfg.Voice.TieBreak = voice.TieBreak(r.TieBreak)
	}
	if r.Duration > 0 {
		cfg.Calibration.Duration = r.Duration
	}

	console.Banner(os.Stdout, "MINDCLICK  EEG → LEFT CLICK", "headset "+cfg.Headset.Device+"  actuator "+cfg.ActuatorLink().Device, "Ctrl+C or say \"stop\" to exit")
	err = g.run(cfg, mindclick.Options{Mode: mindclick.ModeRun, ShowSamples: r.Samples})
	fmt.Println("[SYSTEM] Program exited.")
	return err
}

// MonitorCmd prints attention values.
type MonitorCmd struct{}

func (m *MonitorCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	cfg.Voice.Backend = config.SpeechNone
	return g.run(cfg, mindclick.Options{Mode: mindclick.ModeMonitor})
}

// CalibrateCmd runs one calibration.
type CalibrateCmd struct {
	Duration time.Duration `help:"Calibration window"`
	Margin   float64       `help:"Margin added to the baseline"`
}

func (c *CalibrateCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	cfg.Voice.Backend = config.SpeechNone
	if c.Duration > 0 {
		cfg.Calibration.Duration = c.Duration
	}
	if c.Margin > 0 {
		cfg.Calibration.Margin = c.Margin
	}
	return g.run(cfg, mindclick.Options{Mode: mindclick.ModeCalibrate})
}

// ClickCmd sends one command token.
type ClickCmd struct {
	Command string `help:"Token to send instead of the configured click command"`
}

func (c *ClickCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	cfg.Voice.Backend = config.SpeechNone
	if c.Command != "" {
		cfg.Actuator.Command = c.Command
	}
	if err := g.run(cfg, mindclick.Options{Mode: mindclick.ModeClick}); err != nil {
		return err
	}
	fmt.Printf("sent %s to %s\n", cfg.Actuator.Command, cfg.ActuatorLink().Device)
	return nil
}

// PortsCmd lists serial devices.
type PortsCmd struct{}

func (p *PortsCmd) Run(g *Globals) error {
	ports, err := serialport.List()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	for _, name := range ports {
		fmt.Println(name)
	}
	return nil
}
