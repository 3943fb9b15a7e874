package recorder

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-opc/protocol"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "opc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func f64(v float64) *float64 { return &v }

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opc.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestStartRun(t *testing.T) {
	s := openTestStore(t)
	started := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

	run, err := s.StartRun(protocol.ModelN2, protocol.FirmwareVersion{Major: 18, Minor: 2}, "/dev/spidev0.0", started)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.Equal(t, "18.2", run.Firmware)

	unknown, err := s.StartRun(protocol.ModelN3, protocol.FirmwareVersion{}, "sim", started.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, unknown.Firmware)

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, protocol.ModelN2, runs[0].Model)
	assert.Equal(t, "/dev/spidev0.0", runs[0].Device)
	assert.True(t, started.Equal(runs[0].Started))
	assert.Equal(t, protocol.ModelN3, runs[1].Model)
}

func TestRecordHistogram(t *testing.T) {
	s := openTestStore(t)
	run, err := s.StartRun(protocol.ModelN2, protocol.FirmwareVersion{Major: 18}, "sim", time.Now())
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 8, 31, 0, 500, time.UTC)
	h := &protocol.Histogram{
		Model:          protocol.ModelN2,
		Bins:           []float64{1, 2, 3, 0.5},
		Concentration:  true,
		SamplingPeriod: 1.5,
		SampleFlowRate: f64(3.2),
		Temperature:    f64(21.5),
		PM1:            1.25,
		PM25:           2.5,
		PM10:           10,
	}

	id, err := s.RecordHistogram(run.ID, at, h)
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := s.Histograms(run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)

	want := Record{
		ID:             id,
		RunID:          run.ID,
		Time:           at,
		Concentration:  true,
		Bins:           []float64{1, 2, 3, 0.5},
		SamplingPeriod: 1.5,
		SampleFlowRate: f64(3.2),
		Temperature:    f64(21.5),
		PM1:            1.25,
		PM25:           2.5,
		PM10:           10,
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("stored record mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordHistogramUnknownRun(t *testing.T) {
	s := openTestStore(t)
	_, err := s.RecordHistogram(uuid.New(), time.Now(), &protocol.Histogram{})
	assert.True(t, errors.Is(err, ErrUnknownRun))

	run, err := s.StartRun(protocol.ModelN1, protocol.FirmwareVersion{}, "", time.Now())
	require.NoError(t, err)
	_, err = s.RecordHistogram(run.ID, time.Now(), nil)
	assert.Error(t, err)
}

func TestHistogramsEmptyRun(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Histograms(uuid.New())
	require.NoError(t, err)
	assert.Empty(t, got)
}
