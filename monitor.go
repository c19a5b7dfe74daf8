package transcode

import (
	"sync"
	"time"
)

// ResourceMonitor tracks live transcoder processes and lifecycle counters
type ResourceMonitor struct {
	mu              sync.RWMutex
	activeProcesses map[int]time.Time // PID -> start time
	totalSpawned    int64
	spawnFailures   int64
	failedExits     int64
	forcedKills     int64
}

var (
	monitorInstance *ResourceMonitor
	monitorOnce     sync.Once
)

// GetMonitor returns the process-wide resource monitor
func GetMonitor() *ResourceMonitor {
	monitorOnce.Do(func() {
		monitorInstance = NewResourceMonitor()
	})
	return monitorInstance
}

// NewResourceMonitor creates an empty monitor, for callers that want
// counters scoped to their own streams
func NewResourceMonitor() *ResourceMonitor {
	return &ResourceMonitor{
		activeProcesses: make(map[int]time.Time),
	}
}

// TrackProcess registers a newly spawned transcoder
func (m *ResourceMonitor) TrackProcess(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeProcesses[pid] = time.Now()
	m.totalSpawned++
}

// UntrackProcess removes a transcoder that has exited
func (m *ResourceMonitor) UntrackProcess(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.activeProcesses, pid)
}

// RecordSpawnFailure counts a transcoder that could not be started
func (m *ResourceMonitor) RecordSpawnFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spawnFailures++
}

// RecordFailure counts a transcoder that exited with an error status
// without having been force-killed by its stream
func (m *ResourceMonitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedExits++
}

// RecordForcedKill counts a transcoder that was still running at close
func (m *ResourceMonitor) RecordForcedKill() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forcedKills++
}

// ActiveProcesses returns the number of transcoders that have not exited
func (m *ResourceMonitor) ActiveProcesses() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.activeProcesses)
}

// IsActive reports whether pid is a tracked, still running transcoder
func (m *ResourceMonitor) IsActive(pid int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.activeProcesses[pid]
	return ok
}

// MonitorStats is a snapshot of the monitor counters
type MonitorStats struct {
	ActiveProcesses  int
	TotalSpawned     int64
	SpawnFailures    int64
	FailedExits      int64
	ForcedKills      int64
	OldestProcessAge time.Duration
}

// GetStats returns current resource monitoring statistics
func (m *ResourceMonitor) GetStats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := MonitorStats{
		ActiveProcesses: len(m.activeProcesses),
		TotalSpawned:    m.totalSpawned,
		SpawnFailures:   m.spawnFailures,
		FailedExits:     m.failedExits,
		ForcedKills:     m.forcedKills,
	}

	if len(m.activeProcesses) > 0 {
		oldest := time.Now()
		for _, startTime := range m.activeProcesses {
			if startTime.Before(oldest) {
				oldest = startTime
			}
		}
		stats.OldestProcessAge = time.Since(oldest)
	}

	return stats
}

// Reset clears all monitoring statistics
func (m *ResourceMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.activeProcesses = make(map[int]time.Time)
	m.totalSpawned = 0
	m.spawnFailures = 0
	m.failedExits = 0
	m.forcedKills = 0
}
