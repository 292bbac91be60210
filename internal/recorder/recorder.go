package recorder

import (
	"errors"
	"fmt"
	"time"

	logrus "github.com/sirupsen/logrus"

	"PowerSim/internal/powersim"
)

var log = logrus.WithField("component", "Recorder")

// Sink persists engine telemetry. Samples may be buffered; transitions are
// written when observed.
type Sink interface {
	powersim.Observer
	Close() error
}

type Config struct {
	// Host tags every record, for setups where several simulators share a
	// database.
	Host            string   `mapstructure:"host"`
	StateChangeFile string   `mapstructure:"state_change_file"`
	DB              DBConfig `mapstructure:"db"`
}

type DBConfig struct {
	// Empty disables the database sink.
	Type          string          `mapstructure:"type"`
	BatchSize     int             `mapstructure:"batch_size"`
	FlushInterval time.Duration   `mapstructure:"flush_interval"`
	InfluxDB      *InfluxDBConfig `mapstructure:"influxdb"`
	SQLite        *SQLiteConfig   `mapstructure:"sqlite"`
}

type InfluxDBConfig struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// Recorder fans engine events out to every configured sink.
type Recorder struct {
	sinks []Sink
}

// New builds the sinks named by cfg. A zero Config yields a Recorder with no
// sinks.
func New(cfg Config) (*Recorder, error) {
	r := &Recorder{}

	if cfg.StateChangeFile != "" {
		r.sinks = append(r.sinks, NewCSV(cfg.StateChangeFile, cfg.Host))
	}

	if cfg.DB.Type != "" {
		sink, err := NewDatabase(cfg.DB, cfg.Host)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.sinks = append(r.sinks, sink)
	}

	return r, nil
}

func NewDatabase(cfg DBConfig, host string) (Sink, error) {
	switch cfg.Type {
	case "influxdb":
		if cfg.InfluxDB == nil {
			return nil, fmt.Errorf("influxdb config is nil")
		}
		return NewInfluxDB(cfg, host)

	case "sqlite":
		if cfg.SQLite == nil {
			return nil, fmt.Errorf("sqlite config is nil")
		}
		return NewSQLite(cfg, host)

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func (r *Recorder) Len() int {
	return len(r.sinks)
}

func (r *Recorder) ObserveSample(s powersim.Sample) error {
	var errs []error
	for _, sink := range r.sinks {
		if err := sink.ObserveSample(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Recorder) ObserveTransition(t powersim.Transition) error {
	var errs []error
	for _, sink := range r.sinks {
		if err := sink.ObserveTransition(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Recorder) Close() error {
	var errs []error
	for _, sink := range r.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.sinks = nil
	return errors.Join(errs...)
}
