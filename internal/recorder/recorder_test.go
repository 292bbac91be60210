package recorder

import (
	"database/sql"
	"encoding/csv"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PowerSim/internal/powersim"
)

var testTime = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func wakeTransition() powersim.Transition {
	return powersim.Transition{
		Time:    testTime,
		From:    powersim.Off,
		To:      powersim.Waking,
		Wattage: powersim.WattsWaking,
		Reason:  powersim.ReasonWake,
	}
}

func sampleAt(i int) powersim.Sample {
	return powersim.Sample{
		Time:         testTime.Add(time.Duration(i) * time.Second),
		State:        powersim.Waking,
		Wattage:      45 + float64(i),
		WakeProgress: float64(i) / 150,
	}
}

func TestCSVRecordsTransitions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "changes.csv")
	sink := NewCSV(path, "xeon")

	require.NoError(t, sink.ObserveSample(sampleAt(1)))
	require.NoError(t, sink.ObserveTransition(wakeTransition()))
	require.NoError(t, sink.ObserveTransition(powersim.Transition{
		Time: testTime.Add(150 * time.Second), From: powersim.Waking, To: powersim.Running,
		Wattage: powersim.WattsRunning, Reason: powersim.ReasonBootComplete,
	}))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"2024-03-01 08:00:00", "xeon", "off", "waking", "45.00", "wake"}, rows[1])
	assert.Equal(t, []string{"2024-03-01 08:02:30", "xeon", "waking", "running", "180.00", "boot_complete"}, rows[2])
}

func TestCSVInitialState(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "changes.csv")
	sink := NewCSV(path, "")
	require.NoError(t, sink.ObserveTransition(powersim.Transition{Time: testTime, To: powersim.Off}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), ",INIT,off,")
}

func TestSampleBufferFlushesOnSize(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var batches [][]powersim.Sample
	b := newSampleBuffer(3, time.Hour, func(s []powersim.Sample) error {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, s)
		return nil
	})

	for i := 0; i < 7; i++ {
		require.NoError(t, b.add(sampleAt(i)))
	}
	mu.Lock()
	assert.Len(t, batches, 2)
	mu.Unlock()

	require.NoError(t, b.close())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 3)
	assert.Len(t, batches[2], 1)
}

func TestSampleBufferFlushesOnTimer(t *testing.T) {
	t.Parallel()

	flushed := make(chan int, 1)
	b := newSampleBuffer(100, 5*time.Millisecond, func(s []powersim.Sample) error {
		flushed <- len(s)
		return nil
	})
	defer b.close()

	require.NoError(t, b.add(sampleAt(0)))
	select {
	case n := <-flushed:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("buffer was not flushed")
	}
}

func TestSQLiteSink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "db", "powersim.db")
	cfg := DBConfig{Type: "sqlite", BatchSize: 2, FlushInterval: time.Hour, SQLite: &SQLiteConfig{Path: path}}

	sink, err := NewSQLite(cfg, "xeon")
	require.NoError(t, err)

	require.NoError(t, sink.ObserveTransition(wakeTransition()))
	for i := 0; i < 5; i++ {
		require.NoError(t, sink.ObserveSample(sampleAt(i)))
	}
	require.NoError(t, sink.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var samples int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM power_samples WHERE host = 'xeon'`).Scan(&samples))
	assert.Equal(t, 5, samples)

	var from, to, reason string
	var watts float64
	require.NoError(t, db.QueryRow(`SELECT from_state, to_state, wattage, reason FROM state_transitions`).Scan(&from, &to, &watts, &reason))
	assert.Equal(t, "off", from)
	assert.Equal(t, "waking", to)
	assert.Equal(t, powersim.WattsWaking, watts)
	assert.Equal(t, "wake", reason)
}

type lineProtocolServer struct {
	mu    sync.Mutex
	lines []string
}

func (s *lineProtocolServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v2/write" {
		http.NotFound(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		s.lines = append(s.lines, line)
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *lineProtocolServer) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func TestInfluxDBSink(t *testing.T) {
	t.Parallel()

	backend := &lineProtocolServer{}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	cfg := DBConfig{
		Type:          "influxdb",
		BatchSize:     10,
		FlushInterval: time.Hour,
		InfluxDB:      &InfluxDBConfig{URL: srv.URL, Token: "token", Org: "lab", Bucket: "power"},
	}
	sink := newInfluxDB(influxdb2.NewClient(srv.URL, "token"), cfg, "xeon")

	require.NoError(t, sink.ObserveTransition(wakeTransition()))
	require.Len(t, backend.Lines(), 1)
	assert.True(t, strings.HasPrefix(backend.Lines()[0], "power_transition,from_state=off,host=xeon,to_state=waking "))

	require.NoError(t, sink.ObserveSample(sampleAt(3)))
	require.NoError(t, sink.ObserveSample(sampleAt(4)))
	assert.Len(t, backend.Lines(), 1, "samples stay buffered until a flush")

	require.NoError(t, sink.Close())
	lines := backend.Lines()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "power_sample,host=xeon,state=waking ")
	assert.Contains(t, lines[1], "wattage_w=48")
}

func TestNew(t *testing.T) {
	t.Parallel()

	r, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
	assert.NoError(t, r.ObserveTransition(wakeTransition()))
	assert.NoError(t, r.Close())

	dir := t.TempDir()
	r, err = New(Config{
		Host:            "xeon",
		StateChangeFile: filepath.Join(dir, "changes.csv"),
		DB:              DBConfig{Type: "sqlite", SQLite: &SQLiteConfig{Path: filepath.Join(dir, "powersim.db")}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	assert.NoError(t, r.ObserveTransition(wakeTransition()))
	assert.NoError(t, r.ObserveSample(sampleAt(1)))
	assert.NoError(t, r.Close())
	assert.FileExists(t, filepath.Join(dir, "changes.csv"))
}

func TestNewDatabaseRejectsBadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  DBConfig
		want string
	}{
		{name: "unknown type", cfg: DBConfig{Type: "mongodb"}, want: "unsupported database type: mongodb"},
		{name: "missing influxdb section", cfg: DBConfig{Type: "influxdb"}, want: "influxdb config is nil"},
		{name: "missing sqlite section", cfg: DBConfig{Type: "sqlite"}, want: "sqlite config is nil"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewDatabase(tt.cfg, "")
			assert.EqualError(t, err, tt.want)
		})
	}
}
