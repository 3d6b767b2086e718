package resource

import (
	"context"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/wb-go/wbf/zlog"
)

type Stats struct {
	HeapUsedMB        uint64
	HeapTotalMB       uint64
	RSSMB             uint64
	ExternalMB        uint64
	SystemAvailableMB uint64
}

type PressureLevel int

const (
	PressureNormal PressureLevel = iota
	PressureElevated
	PressureHigh
	PressureCritical
)

func (p PressureLevel) String() string {
	switch p {
	case PressureElevated:
		return "elevated"
	case PressureHigh:
		return "high"
	case PressureCritical:
		return "critical"
	default:
		return "normal"
	}
}

const (
	heapElevatedFraction = 0.75
	heapCriticalFraction = 0.90
	rssElevatedMB        = 2048
	rssHighMB            = 2560
	externalHighMB       = 512
	sysAvailableLowMB    = 512
	sysAvailableMinMB    = 256
)

// Classify maps a snapshot onto a pressure level. Pure so that tests and
// the strategy selector can reason about fixed snapshots.
func Classify(s Stats) PressureLevel {
	heapFraction := 0.0
	if s.HeapTotalMB > 0 {
		heapFraction = float64(s.HeapUsedMB) / float64(s.HeapTotalMB)
	}

	switch {
	case heapFraction > heapCriticalFraction || s.SystemAvailableMB < sysAvailableMinMB:
		return PressureCritical
	case s.RSSMB > rssHighMB || s.ExternalMB > externalHighMB:
		return PressureHigh
	case heapFraction > heapElevatedFraction || s.RSSMB > rssElevatedMB || s.SystemAvailableMB < sysAvailableLowMB:
		return PressureElevated
	default:
		return PressureNormal
	}
}

// Monitor samples process and system memory. It never fails: probes that
// error out leave their fields at zero and the classification degrades to
// whatever the remaining fields say.
type Monitor struct {
	logger *zlog.Zerolog
	proc   *process.Process
}

func NewMonitor(logger *zlog.Zerolog) *Monitor {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn().Err(err).Msg("Process probe unavailable, RSS sampling disabled")
	}
	return &Monitor{
		logger: logger,
		proc:   proc,
	}
}

func (m *Monitor) Sample() Stats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := Stats{
		HeapUsedMB:  ms.HeapAlloc >> 20,
		HeapTotalMB: ms.HeapSys >> 20,
		ExternalMB:  (ms.Sys - ms.HeapSys) >> 20,
	}

	if m.proc != nil {
		if info, err := m.proc.MemoryInfo(); err == nil {
			stats.RSSMB = info.RSS >> 20
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.SystemAvailableMB = vm.Available >> 20
	}

	return stats
}

func (m *Monitor) Pressure() PressureLevel {
	return Classify(m.Sample())
}

// Cleanup asks the runtime to collect and return memory to the OS, waits
// a bounded moment for the collector to make progress, and logs if
// pressure persists afterwards.
func (m *Monitor) Cleanup(ctx context.Context) {
	before := m.Sample()

	runtime.GC()
	debug.FreeOSMemory()

	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return
	}

	after := m.Sample()
	level := Classify(after)
	if level >= PressureHigh {
		m.logger.Warn().
			Uint64("heap_before_mb", before.HeapUsedMB).
			Uint64("heap_after_mb", after.HeapUsedMB).
			Str("pressure", level.String()).
			Msg("Memory pressure persists after cleanup")
	}
}
