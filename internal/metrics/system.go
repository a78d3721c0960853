package metrics

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemStatus is a point-in-time view of the monitor process and its host.
type SystemStatus struct {
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"` // healthy, degraded
	UptimeSeconds int64     `json:"uptime_seconds"`
	Goroutines    int       `json:"goroutines"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryMB      float64   `json:"memory_mb"`
	MemoryPercent float64   `json:"memory_percent"`

	HostName          string  `json:"host_name,omitempty"`
	HostUptimeSeconds uint64  `json:"host_uptime_seconds,omitempty"`
	HostMemoryPercent float64 `json:"host_memory_percent,omitempty"`
	Load1             float64 `json:"load1,omitempty"`
	Load5             float64 `json:"load5,omitempty"`
	Load15            float64 `json:"load15,omitempty"`
}

// System collects SystemStatus snapshots and caches them for a short TTL;
// CPU sampling is not free.
type System struct {
	startTime time.Time
	ttl       time.Duration

	mu     sync.Mutex
	cached *SystemStatus
	expiry time.Time
}

func NewSystem(ttl time.Duration) *System {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &System{startTime: time.Now(), ttl: ttl}
}

func (s *System) Snapshot(ctx context.Context) SystemStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && time.Now().Before(s.expiry) {
		return *s.cached
	}
	st := s.collect(ctx)
	s.cached = &st
	s.expiry = time.Now().Add(s.ttl)
	return st
}

func (s *System) collect(ctx context.Context) SystemStatus {
	st := SystemStatus{
		Timestamp:     time.Now().UTC(),
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
			st.CPUPercent = cpu
		}
		if m, err := proc.MemoryInfoWithContext(ctx); err == nil {
			st.MemoryMB = float64(m.RSS) / (1024 * 1024)
		}
		if pct, err := proc.MemoryPercentWithContext(ctx); err == nil {
			st.MemoryPercent = float64(pct)
		}
	}
	if info, err := host.InfoWithContext(ctx); err == nil {
		st.HostName = info.Hostname
		st.HostUptimeSeconds = info.Uptime
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		st.HostMemoryPercent = vm.UsedPercent
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		st.Load1, st.Load5, st.Load15 = avg.Load1, avg.Load5, avg.Load15
	}

	if st.MemoryPercent > 90 || st.CPUPercent > 90 || st.HostMemoryPercent > 95 {
		st.Status = "degraded"
	}
	return st
}
