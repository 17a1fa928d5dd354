package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats снимок ресурсов процесса для /api/stats
type ProcessStats struct {
	Uptime        string  `json:"uptime"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	RSSMB         float64 `json:"rss_mb"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
	Goroutines    int     `json:"goroutines"`
}

// ServerMetrics собирает сведения о процессе сервера
type ServerMetrics struct {
	StartTime time.Time
	proc      *process.Process // nil, если gopsutil не смог открыть процесс
}

// NewServerMetrics создаёт сборщик для текущего процесса
func NewServerMetrics() *ServerMetrics {
	sm := &ServerMetrics{StartTime: time.Now()}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		sm.proc = proc
	}
	return sm
}

// FormatUptime форматирует длительность работы: 1д 2ч 3м 4с
func FormatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// Snapshot возвращает текущие показатели. Ошибки gopsutil не фатальны:
// соответствующие поля остаются нулевыми.
func (sm *ServerMetrics) Snapshot() ProcessStats {
	uptime := time.Since(sm.StartTime)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := ProcessStats{
		Uptime:        FormatUptime(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		HeapAllocMB:   float64(m.HeapAlloc) / 1024 / 1024,
		NumGC:         m.NumGC,
		Goroutines:    runtime.NumGoroutine(),
	}

	if sm.proc != nil {
		if cpu, err := sm.proc.CPUPercent(); err == nil {
			stats.CPUPercent = cpu
		}
		if mem, err := sm.proc.MemoryInfo(); err == nil && mem != nil {
			stats.RSSMB = float64(mem.RSS) / 1024 / 1024
		}
	}
	return stats
}
