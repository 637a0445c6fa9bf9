package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// HealthStats aggregates the live counters exposed on the health endpoint.
type HealthStats struct {
	MessagesStored  uint64  `json:"messages_stored"`
	SignalsRelayed  uint64  `json:"signals_relayed"`
	PeersConnected  int64   `json:"peers_connected"`
	ActiveRooms     int64   `json:"active_rooms"`
	ErrorCount      uint64  `json:"error_count"`
	MessagesPerSec  float64 `json:"messages_per_sec"`
	AllocMemMb      uint64  `json:"alloc_mem_mb"`
	NumGC           uint32  `json:"num_gc"`
	ProcessCPU      float64 `json:"process_cpu_percent"`
	ProcessRSSBytes uint64  `json:"process_rss_bytes"`
}

// Monitor collects runtime telemetry with atomic counters. Rates are derived
// on snapshot against the previous window.
type Monitor struct {
	log *slog.Logger

	messagesStored uint64
	signalsRelayed uint64
	peersConnected int64
	activeRooms    int64
	errorCount     uint64

	mu            sync.Mutex
	lastCheck     time.Time
	lastMessages  uint64
	latest        HealthStats
	processProbe  func() (cpu float64, rss uint64)
}

func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{log: log, lastCheck: time.Now()}
}

// SetProcessProbe installs the process-level stats collector (CPU, RSS).
// Kept injectable so tests never depend on the host process table.
func (m *Monitor) SetProcessProbe(probe func() (float64, uint64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processProbe = probe
}

func (m *Monitor) IncrMessagesStored() { atomic.AddUint64(&m.messagesStored, 1) }
func (m *Monitor) IncrSignalsRelayed() { atomic.AddUint64(&m.signalsRelayed, 1) }
func (m *Monitor) IncrErrorCount()     { atomic.AddUint64(&m.errorCount, 1) }

func (m *Monitor) PeerConnected()    { atomic.AddInt64(&m.peersConnected, 1) }
func (m *Monitor) PeerDisconnected() { atomic.AddInt64(&m.peersConnected, -1) }
func (m *Monitor) RoomOpened()       { atomic.AddInt64(&m.activeRooms, 1) }
func (m *Monitor) RoomClosed()       { atomic.AddInt64(&m.activeRooms, -1) }

// Snapshot recomputes derived stats and returns the current view.
func (m *Monitor) Snapshot() HealthStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(m.lastCheck).Seconds()

	stored := atomic.LoadUint64(&m.messagesStored)
	if elapsed > 0 {
		m.latest.MessagesPerSec = float64(stored-m.lastMessages) / elapsed
	}
	m.lastCheck = now
	m.lastMessages = stored

	m.latest.MessagesStored = stored
	m.latest.SignalsRelayed = atomic.LoadUint64(&m.signalsRelayed)
	m.latest.PeersConnected = atomic.LoadInt64(&m.peersConnected)
	m.latest.ActiveRooms = atomic.LoadInt64(&m.activeRooms)
	m.latest.ErrorCount = atomic.LoadUint64(&m.errorCount)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.latest.AllocMemMb = mem.Alloc / 1024 / 1024
	m.latest.NumGC = mem.NumGC

	if m.processProbe != nil {
		cpu, rss := m.processProbe()
		m.latest.ProcessCPU = cpu
		m.latest.ProcessRSSBytes = rss
	}

	return m.latest
}
