package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"tinyrf/core"
	"tinyrf/protocol"
)

var (
	device   = flag.String("device", "", "Serial device of the board (default: first port found)")
	source   = flag.String("source", "board", "Where messages come from: board, sniffer or gpio")
	sink     = flag.String("sink", "board", "How messages are sent: board or gpio")
	preset   = flag.String("preset", protocol.DefaultTiming.Name, "Timing preset: 240, 500, 1100 or 2500")
	check    = flag.String("check", "crc8", "Error check: none, checksum or crc8")
	sequence = flag.Bool("seq", true, "Frames carry a sequence number")
	eot      = flag.String("eot", "rx", "End of transmission: none, tx, rx or both")
	ring     = flag.Int("ring", protocol.DefaultRingCapacity, "Receive ring capacity in bytes")
	rxPin    = flag.Uint("rx-pin", 27, "GPIO of the receiver module data line (gpio source)")
	txPin    = flag.Uint("tx-pin", 17, "GPIO of the transmitter module data line (gpio sink)")
	broker   = flag.String("mqtt", "", "Broker URL to bridge messages to, e.g. mqtt://host:1883/tinyrf")
	daemon   = flag.Bool("daemon", false, "Listen until interrupted instead of starting a shell")
)

// radioConfig builds the radio configuration from the command line
func radioConfig() (core.Config, error) {
	cfg := core.DefaultConfig()
	t, err := protocol.PresetByName(*preset)
	if err != nil {
		return cfg, err
	}
	cfg.Timing = t
	if cfg.ErrorCheck, err = protocol.ParseErrorCheck(*check); err != nil {
		return cfg, err
	}
	if cfg.EOT, err = core.ParseEOTMode(*eot); err != nil {
		return cfg, err
	}
	cfg.Sequence = *sequence
	cfg.RingCapacity = *ring
	return cfg, cfg.Validate()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg, err := radioConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	app := newApp(cfg)
	defer app.Close()

	if *daemon {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := app.Listen(ctx, printMessage(func(format string, a ...interface{}) {
			fmt.Fprintf(os.Stdout, format, a...)
		})); err != nil && ctx.Err() == nil {
			glog.Errorf("listen: %v", err)
			os.Exit(1)
		}
		return
	}

	shell := ishell.New()
	shell.Set(appKey, app)
	shell.SetPrompt("tinyrf> ")
	for _, cmd := range commands {
		shell.AddCmd(cmd)
	}

	if flag.NArg() > 0 {
		if err := shell.Process(flag.Args()...); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	shell.Println("tinyrf host " + protocol.Version + ", " + describe(cfg))
	shell.Run()
}

func describe(cfg core.Config) string {
	parts := []string{
		"preset " + cfg.Timing.Name,
		"check " + cfg.ErrorCheck.String(),
		"eot " + cfg.EOT.String(),
	}
	if cfg.Sequence {
		parts = append(parts, "seq")
	}
	return strings.Join(parts, ", ")
}
