package services

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// ResourceSnapshot captures host and process pressure at one instant.
type ResourceSnapshot struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	HeapAllocMB   uint64  `json:"heap_alloc_mb"`
	Goroutines    int     `json:"goroutines"`
}

// ResourceMonitor samples CPU, memory, and goroutine counts so batch jobs
// leave a resource trail in the operational log stream.
type ResourceMonitor struct {
	logger *logrus.Logger

	// cpuSampleInterval is how long the CPU sampler observes before
	// reporting. Tests set it to zero to avoid the wait.
	cpuSampleInterval time.Duration
}

func NewResourceMonitor(logger *logrus.Logger) *ResourceMonitor {
	return &ResourceMonitor{
		logger:            logger,
		cpuSampleInterval: time.Second,
	}
}

// Snapshot samples current usage. Sampler failures degrade to zero values
// rather than failing the caller; a job never aborts over monitoring.
func (m *ResourceMonitor) Snapshot(ctx context.Context) ResourceSnapshot {
	snap := ResourceSnapshot{Goroutines: runtime.NumGoroutine()}

	if cpuPercent, err := cpu.PercentWithContext(ctx, m.cpuSampleInterval, false); err == nil && len(cpuPercent) > 0 {
		snap.CPUPercent = cpuPercent[0]
	} else if err != nil {
		m.logger.WithError(err).Debug("CPU sample failed")
	}

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryPercent = memInfo.UsedPercent
		snap.MemoryUsedMB = memInfo.Used / 1024 / 1024
	} else {
		m.logger.WithError(err).Debug("Memory sample failed")
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	snap.HeapAllocMB = ms.HeapAlloc / 1024 / 1024

	return snap
}

// LogSnapshot samples usage and writes it as one structured log line tagged
// with the job that just ran.
func (m *ResourceMonitor) LogSnapshot(ctx context.Context, job string) {
	snap := m.Snapshot(ctx)
	m.logger.WithFields(logrus.Fields{
		"job":            job,
		"cpu_percent":    snap.CPUPercent,
		"memory_percent": snap.MemoryPercent,
		"memory_used_mb": snap.MemoryUsedMB,
		"heap_alloc_mb":  snap.HeapAllocMB,
		"goroutines":     snap.Goroutines,
	}).Info("Resource usage")
}
