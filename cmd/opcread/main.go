// Command opcread polls an Alphasense OPC-N1, OPC-N2 or OPC-N3 and writes
// each histogram to stdout.
//
// Usage:
//
//	opcread [flags]
//
// Flags:
//
//	-config string      YAML configuration file
//	-device string      spi:<port>, usbiss:<serial device> or sim (default "spi:")
//	-model string       N1, N2 or N3 (default "N2")
//	-firmware string    Firmware version, e.g. 18.2 (default: detect)
//	-samples int        Histograms to read, 0 for no limit
//	-interval duration  Time between histograms (default 5s)
//	-concentration      Report bins in particles/cm³
//	-format string      json or cbor (default "json")
//	-db string          SQLite file to store readings in
//	-trace string       CBOR file to record bus frames in
//	-log-level string   debug, info, warn or error (default "info")
//	-simulate           Use the built-in device simulator
//
// Examples:
//
//	# Ten readings from an OPC-N3 on the first spidev port
//	opcread -model N3 -device spi:/dev/spidev0.0 -samples 10
//
//	# Through a USB-ISS adapter, storing readings
//	opcread -device usbiss:/dev/ttyACM0 -db readings.db
//
//	# Try it without hardware
//	opcread -simulate -samples 3 -interval 1s -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "opcread: %v\n", err)
		os.Exit(2)
	}

	level, _ := parseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Stdout); err != nil {
		logger.Error("opcread failed", "error", err)
		os.Exit(1)
	}
}

// parseFlags builds the configuration from defaults, the optional yaml
// file and the flags that were set explicitly.
func parseFlags(args []string) (Config, error) {
	fs := flag.NewFlagSet("opcread", flag.ContinueOnError)

	def := defaultConfig()
	var (
		configFile = fs.String("config", "", "YAML configuration file")
		device     = fs.String("device", def.Device, "spi:<port>, usbiss:<serial device> or sim")
		model      = fs.String("model", def.Model.String(), "N1, N2 or N3")
		firmware   = fs.String("firmware", "", "Firmware version, e.g. 18.2 (default: detect)")
		freq       = fs.Int("frequency-khz", def.FrequencyKHz, "SPI clock in kHz")
		samples    = fs.Int("samples", def.Samples, "Histograms to read, 0 for no limit")
		interval   = fs.Duration("interval", def.Interval, "Time between histograms")
		conc       = fs.Bool("concentration", false, "Report bins in particles/cm³")
		format     = fs.String("format", def.Format, "json or cbor")
		db         = fs.String("db", "", "SQLite file to store readings in")
		tracePath  = fs.String("trace", "", "CBOR file to record bus frames in")
		logLevel   = fs.String("log-level", def.LogLevel, "debug, info, warn or error")
		attempts   = fs.Int("wait-attempts", def.WaitAttempts, "Histogram polls while the device starts")
		simulate   = fs.Bool("simulate", false, "Use the built-in device simulator")
	)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := def
	if *configFile != "" {
		if err := loadConfigFile(*configFile, &cfg); err != nil {
			return Config{}, err
		}
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device = *device
		case "model":
			if err := cfg.Model.UnmarshalText([]byte(*model)); err != nil {
				flagErr = err
			}
		case "firmware":
			cfg.Firmware = *firmware
		case "frequency-khz":
			cfg.FrequencyKHz = *freq
		case "samples":
			cfg.Samples = *samples
		case "interval":
			cfg.Interval = *interval
		case "concentration":
			cfg.NumberConcentration = *conc
		case "format":
			cfg.Format = *format
		case "db":
			cfg.Database = *db
		case "trace":
			cfg.Trace = *tracePath
		case "log-level":
			cfg.LogLevel = *logLevel
		case "wait-attempts":
			cfg.WaitAttempts = *attempts
		}
	})
	if flagErr != nil {
		return Config{}, flagErr
	}
	if *simulate {
		cfg.Device = "sim"
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
