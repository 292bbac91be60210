package recorder

import (
	"sync"
	"time"

	"PowerSim/internal/powersim"
)

const (
	defaultBatchSize     = 30
	defaultFlushInterval = 30 * time.Second
)

// sampleBuffer batches samples for a database sink and flushes them on size
// or on a timer, whichever comes first.
type sampleBuffer struct {
	mu        sync.Mutex
	samples   []powersim.Sample
	batchSize int
	write     func([]powersim.Sample) error

	stop chan struct{}
	done chan struct{}
}

func newSampleBuffer(batchSize int, interval time.Duration, write func([]powersim.Sample) error) *sampleBuffer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if interval <= 0 {
		interval = defaultFlushInterval
	}

	b := &sampleBuffer{
		samples:   make([]powersim.Sample, 0, batchSize),
		batchSize: batchSize,
		write:     write,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go b.periodicFlush(interval)
	return b
}

func (b *sampleBuffer) add(s powersim.Sample) error {
	b.mu.Lock()
	b.samples = append(b.samples, s)
	if len(b.samples) < b.batchSize {
		b.mu.Unlock()
		return nil
	}

	batch := b.takeLocked()
	b.mu.Unlock()
	return b.write(batch)
}

func (b *sampleBuffer) takeLocked() []powersim.Sample {
	batch := b.samples
	b.samples = make([]powersim.Sample, 0, b.batchSize)
	return batch
}

func (b *sampleBuffer) flush() error {
	b.mu.Lock()
	if len(b.samples) == 0 {
		b.mu.Unlock()
		return nil
	}
	batch := b.takeLocked()
	b.mu.Unlock()
	return b.write(batch)
}

func (b *sampleBuffer) periodicFlush(interval time.Duration) {
	defer close(b.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if err := b.flush(); err != nil {
				log.Errorf("Failed to flush buffer: %v", err)
			}
		}
	}
}

// close stops the flush timer and writes what is left.
func (b *sampleBuffer) close() error {
	close(b.stop)
	<-b.done
	return b.flush()
}
