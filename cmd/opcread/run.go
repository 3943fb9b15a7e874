package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/moffa90/go-opc/internal/simulator"
	"github.com/moffa90/go-opc/opc"
	"github.com/moffa90/go-opc/protocol"
	"github.com/moffa90/go-opc/recorder"
	"github.com/moffa90/go-opc/trace"
	"github.com/moffa90/go-opc/transport/periphspi"
	"github.com/moffa90/go-opc/transport/usbiss"
)

// Reading is one output record.
type Reading struct {
	Time      time.Time           `json:"time" cbor:"time"`
	RunID     string              `json:"run_id,omitempty" cbor:"run_id,omitempty"`
	Device    string              `json:"device" cbor:"device"`
	Histogram *protocol.Histogram `json:"histogram" cbor:"histogram"`
}

type encoder interface {
	Encode(v interface{}) error
}

func newEncoder(format string, w io.Writer) encoder {
	if format == "cbor" {
		return trace.NewEncoder(w)
	}
	return json.NewEncoder(w)
}

// openConn opens the transport named by cfg.Device.
func openConn(cfg Config) (opc.Conn, error) {
	kind, path, _ := strings.Cut(cfg.Device, ":")
	freq := physic.Frequency(cfg.FrequencyKHz) * physic.KiloHertz

	switch kind {
	case "spi":
		return periphspi.Open(path, freq)
	case "usbiss":
		return usbiss.Open(path, freq)
	case "sim":
		model := cfg.Model
		if model == protocol.ModelN1 {
			return nil, fmt.Errorf("the simulator emulates the OPC-N2 and OPC-N3 only")
		}
		return simulator.New(simulator.Config{Model: model})
	}
	return nil, fmt.Errorf("unknown device %q", cfg.Device)
}

// run opens the device, starts it and writes cfg.Samples readings to out.
func run(ctx context.Context, cfg Config, logger *slog.Logger, out io.Writer, extra ...opc.Option) error {
	conn, err := openConn(cfg)
	if err != nil {
		return err
	}

	opts := []opc.Option{opc.WithLogger(logger)}
	fw, err := cfg.firmware()
	if err != nil {
		return err
	}
	if fw != nil {
		opts = append(opts, opc.WithFirmware(fw.Major, fw.Minor))
	}
	// The N3 information string carries no parseable version; its firmware
	// command is read instead.
	if cfg.Model == protocol.ModelN3 {
		opts = append(opts, opc.WithDetectFirmware(false))
	}

	if cfg.Trace != "" {
		frames, err := trace.Create(cfg.Trace)
		if err != nil {
			return fmt.Errorf("open trace: %w", err)
		}
		defer func() {
			if err := frames.Close(); err != nil {
				logger.Warn("trace file incomplete", "path", cfg.Trace, "error", err)
			}
		}()
		opts = append(opts, opc.WithTracer(frames.Record))
	}
	opts = append(opts, extra...)

	sess, err := opc.New(conn, cfg.Model, opts...)
	if err != nil {
		if c, ok := conn.(io.Closer); ok {
			c.Close()
		}
		return err
	}
	defer sess.Close()

	if cfg.Model == protocol.ModelN3 && fw == nil {
		if _, err := sess.ReadFirmwareVersion(); err != nil {
			logger.Warn("firmware version unavailable", "error", err)
		}
	}
	logger.Info("connected", "device", cfg.Device, "sensor", sess.String())

	var (
		store *recorder.Store
		dbRun recorder.Run
		runID string
	)
	if cfg.Database != "" {
		store, err = recorder.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()

		version, _ := sess.Firmware()
		dbRun, err = store.StartRun(cfg.Model, version, cfg.Device, time.Now())
		if err != nil {
			return err
		}
		runID = dbRun.ID.String()
		logger.Info("recording", "database", cfg.Database, "run", runID)
	}

	defer func() {
		if _, err := sess.Off(); err != nil {
			logger.Warn("power off failed", "error", err)
		}
	}()
	// The first histogram covers the start-up period and is discarded.
	if _, err := sess.Wait(0, cfg.WaitAttempts); err != nil {
		return err
	}

	enc := newEncoder(cfg.Format, out)
	for n := 0; cfg.Samples == 0 || n < cfg.Samples; n++ {
		if n > 0 && cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(cfg.Interval):
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		h, err := sess.ReadHistogram(cfg.NumberConcentration)
		if err != nil {
			logger.Warn("histogram read failed", "sample", n, "error", err)
			continue
		}

		now := time.Now()
		if store != nil {
			if _, err := store.RecordHistogram(dbRun.ID, now, h); err != nil {
				return err
			}
		}
		if err := enc.Encode(Reading{Time: now, RunID: runID, Device: cfg.Device, Histogram: h}); err != nil {
			return fmt.Errorf("write reading: %w", err)
		}
	}
	return nil
}
