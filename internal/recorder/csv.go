package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"PowerSim/internal/powersim"
	"PowerSim/internal/util"
)

const timeLayout = "2006-01-02 15:04:05"

var csvHeader = []string{"time", "host", "old_state", "new_state", "wattage", "reason"}

// CSV appends one row per state transition to a file, creating it with a
// header on first use.
type CSV struct {
	mu   sync.Mutex
	path string
	host string
}

func NewCSV(path, host string) *CSV {
	return &CSV{path: path, host: host}
}

func (c *CSV) ObserveSample(powersim.Sample) error {
	return nil
}

func (c *CSV) ObserveTransition(t powersim.Transition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := util.EnsureParentDir(c.path); err != nil {
		return err
	}

	_, statErr := os.Stat(c.path)
	newFile := os.IsNotExist(statErr)

	file, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open state change log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if newFile {
		if err := writer.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	oldState := string(t.From)
	if oldState == "" {
		oldState = "INIT"
	}
	err = writer.Write([]string{
		t.Time.Format(timeLayout),
		c.host,
		oldState,
		string(t.To),
		strconv.FormatFloat(t.Wattage, 'f', 2, 64),
		t.Reason,
	})
	if err != nil {
		return fmt.Errorf("failed to write state change: %w", err)
	}

	writer.Flush()
	return writer.Error()
}

func (c *CSV) Close() error {
	return nil
}
