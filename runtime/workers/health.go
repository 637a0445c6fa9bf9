package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"studio-live/observability"
)

// HealthWorker refreshes the monitor snapshot on a fixed interval so the
// health endpoint always serves recent numbers, and logs a periodic summary.
type HealthWorker struct {
	log            *slog.Logger
	monitor        *observability.Monitor
	metricInterval time.Duration
}

func NewHealthWorker(log *slog.Logger, monitor *observability.Monitor, metricInterval time.Duration) *HealthWorker {
	return &HealthWorker{log: log, monitor: monitor, metricInterval: metricInterval}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	w.monitor.SetProcessProbe(func() (float64, uint64) {
		cpu, err := self.CPUPercent()
		if err != nil {
			w.log.Debug("Failed to read CPU percent", "err", err)
		}
		var rss uint64
		if mem, err := self.MemoryInfo(); err == nil && mem != nil {
			rss = mem.RSS
		}
		return cpu, rss
	})

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health worker")
			return nil
		case <-ticker.C:
			stats := w.monitor.Snapshot()
			w.log.Debug("Health snapshot",
				"messages_stored", stats.MessagesStored,
				"signals_relayed", stats.SignalsRelayed,
				"peers", stats.PeersConnected,
				"rooms", stats.ActiveRooms,
				"mem_mb", stats.AllocMemMb,
			)
		}
	}
}
