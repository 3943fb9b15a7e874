// Package recorder persists decoded OPC histograms in a SQLite database.
// Each polling session is a run, identified by a random UUID.
package recorder

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/moffa90/go-opc/protocol"
)

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id            TEXT PRIMARY KEY,
		model             TEXT NOT NULL,
		firmware          TEXT,
		device            TEXT,
		started_at        TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS histograms (
		histogram_id      INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id            TEXT NOT NULL,
		recorded_at       TEXT NOT NULL,
		concentration     INTEGER NOT NULL,
		bins              TEXT NOT NULL,
		sampling_period   DOUBLE,
		sample_flow_rate  DOUBLE,
		temperature       DOUBLE,
		pressure          DOUBLE,
		humidity          DOUBLE,
		pm1               DOUBLE,
		pm2_5             DOUBLE,
		pm10              DOUBLE,
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
	CREATE INDEX IF NOT EXISTS idx_histograms_run ON histograms(run_id, recorded_at);
`

// ErrUnknownRun is returned when a histogram references a run that was
// never started.
var ErrUnknownRun = errors.New("unknown run")

// Store is a histogram database.
type Store struct {
	*sql.DB
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db}, nil
}

// Run describes one polling session.
type Run struct {
	ID       uuid.UUID
	Model    protocol.Model
	Firmware string
	Device   string
	Started  time.Time
}

// Record is a stored histogram.
type Record struct {
	ID             int64
	RunID          uuid.UUID
	Time           time.Time
	Concentration  bool
	Bins           []float64
	SamplingPeriod float64
	SampleFlowRate *float64
	Temperature    *float64
	Pressure       *float64
	Humidity       *float64
	PM1            float64
	PM25           float64
	PM10           float64
}

// StartRun registers a new run. fw may be zero when the firmware is unknown.
func (s *Store) StartRun(model protocol.Model, fw protocol.FirmwareVersion, device string, started time.Time) (Run, error) {
	run := Run{
		ID:      uuid.New(),
		Model:   model,
		Device:  device,
		Started: started.UTC(),
	}
	if !fw.IsZero() {
		run.Firmware = fw.String()
	}

	_, err := s.Exec(
		`INSERT INTO runs (run_id, model, firmware, device, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID.String(), run.Model.String(), run.Firmware, run.Device, run.Started.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// RecordHistogram stores h under run.
func (s *Store) RecordHistogram(run uuid.UUID, at time.Time, h *protocol.Histogram) (int64, error) {
	if h == nil {
		return 0, errors.New("histogram is nil")
	}

	var exists int
	if err := s.QueryRow(`SELECT COUNT(*) FROM runs WHERE run_id = ?`, run.String()).Scan(&exists); err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRun, run)
	}

	bins, err := json.Marshal(h.Bins)
	if err != nil {
		return 0, fmt.Errorf("failed to encode bins: %v", err)
	}

	res, err := s.Exec(
		`INSERT INTO histograms (
			run_id, recorded_at, concentration, bins, sampling_period,
			sample_flow_rate, temperature, pressure, humidity,
			pm1, pm2_5, pm10
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.String(), at.UTC().Format(time.RFC3339Nano), boolInt(h.Concentration), string(bins), h.SamplingPeriod,
		nullable(h.SampleFlowRate), nullable(h.Temperature), nullable(h.Pressure), nullable(h.Humidity),
		h.PM1, h.PM25, h.PM10,
	)
	if err != nil {
		return 0, fmt.Errorf("insert histogram: %w", err)
	}
	return res.LastInsertId()
}

// Runs lists all runs, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.Query(`SELECT run_id, model, firmware, device, started_at FROM runs ORDER BY started_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			id, model, started string
			fw, device         sql.NullString
		)
		if err := rows.Scan(&id, &model, &fw, &device, &started); err != nil {
			return nil, err
		}
		run := Run{Firmware: fw.String, Device: device.String}
		if run.Model, err = protocol.ParseModel(model); err != nil {
			return nil, err
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse run_id: %v", err)
		}
		if run.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("failed to parse started_at: %v", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Histograms returns the histograms of a run in recording order.
func (s *Store) Histograms(run uuid.UUID) ([]Record, error) {
	rows, err := s.Query(
		`SELECT histogram_id, recorded_at, concentration, bins, sampling_period,
			sample_flow_rate, temperature, pressure, humidity, pm1, pm2_5, pm10
		FROM histograms WHERE run_id = ? ORDER BY histogram_id`,
		run.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                       Record
			at, bins                string
			sfr, temp, press, humid sql.NullFloat64
		)
		r.RunID = run
		if err := rows.Scan(&r.ID, &at, &r.Concentration, &bins, &r.SamplingPeriod,
			&sfr, &temp, &press, &humid, &r.PM1, &r.PM25, &r.PM10); err != nil {
			return nil, err
		}
		if r.Time, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("failed to parse recorded_at: %v", err)
		}
		if err := json.Unmarshal([]byte(bins), &r.Bins); err != nil {
			return nil, fmt.Errorf("failed to decode bins: %v", err)
		}
		r.SampleFlowRate = ptr(sfr)
		r.Temperature = ptr(temp)
		r.Pressure = ptr(press)
		r.Humidity = ptr(humid)
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func ptr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
