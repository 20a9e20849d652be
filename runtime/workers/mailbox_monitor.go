package workers

import (
	"context"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

type Mailbox interface {
	Len() int
	Cap() int
}

// Sample is one reading of the control loop backlog and of the process.
type Sample struct {
	Length       int
	Capacity     int
	CapacityLeft int
	Low          bool
	Goroutines   int
	RSS          uint64
	CPUPercent   float64
}

// MailboxMonitor periodically reports how full the loop mailbox is.
// Reading len and cap is non-blocking, it never slows the loop down.
// A nearly full mailbox means store feeds are about to block on Dispatch.
type MailboxMonitor struct {
	log                  *slog.Logger
	mailbox              Mailbox
	interval             time.Duration
	lowCapacityThreshold int
	process              *process.Process
}

func NewMailboxMonitor(log *slog.Logger, mailbox Mailbox, interval time.Duration, lowCapacityThreshold int) *MailboxMonitor {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Debug("Process stats unavailable", "error", err)
	}
	return &MailboxMonitor{
		log:                  log,
		mailbox:              mailbox,
		interval:             interval,
		lowCapacityThreshold: lowCapacityThreshold,
		process:              p,
	}
}

func (m *MailboxMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Debug("Context done, stopping mailbox monitor")
			return nil
		case <-ticker.C:
			sample := m.Sample()
			if sample.Low {
				m.log.Warn("Loop mailbox almost full",
					"length", sample.Length, "capacity", sample.Capacity, "left", sample.CapacityLeft)
				continue
			}
			m.log.Debug("Loop mailbox",
				"length", sample.Length, "capacity", sample.Capacity,
				"goroutines", sample.Goroutines, "rss", sample.RSS, "cpu", sample.CPUPercent)
		}
	}
}

func (m *MailboxMonitor) Sample() Sample {
	length, capacity := m.mailbox.Len(), m.mailbox.Cap()
	left := capacity - length
	sample := Sample{
		Length:       length,
		Capacity:     capacity,
		CapacityLeft: left,
		Low:          left <= m.lowCapacityThreshold,
		Goroutines:   goruntime.NumGoroutine(),
	}
	if m.process == nil {
		return sample
	}
	if memory, err := m.process.MemoryInfo(); err == nil {
		sample.RSS = memory.RSS
	}
	if cpu, err := m.process.CPUPercent(); err == nil {
		sample.CPUPercent = cpu
	}
	return sample
}
