package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"syscall"
	"time"

	"github.com/mstgnz/goesewa/infra/response"
	"github.com/mstgnz/goesewa/provider"
)

// StoragePinger reports whether the configuration database is reachable
type StoragePinger interface {
	Ping(ctx context.Context) error
}

// MerchantLister lists the merchants configured per flow
type MerchantLister interface {
	Merchants(flow provider.Flow) []string
}

// HealthHandler handles health check requests
type HealthHandler struct {
	storage     StoragePinger
	merchants   MerchantLister
	logging     bool
	version     string
	environment string
	startTime   time.Time
	diskPath    string
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status      string                        `json:"status"`
	Version     string                        `json:"version"`
	Timestamp   time.Time                     `json:"timestamp"`
	Uptime      string                        `json:"uptime"`
	Environment string                        `json:"environment"`
	Storage     *StorageHealth                `json:"storage"`
	Flows       map[provider.Flow]*FlowHealth `json:"flows"`
	System      *SystemHealth                 `json:"system"`
	Services    map[string]*ServiceHealth     `json:"services"`
}

// StorageHealth represents the SQLite configuration store
type StorageHealth struct {
	Status         string `json:"status"`
	Connected      bool   `json:"connected"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Error          string `json:"error,omitempty"`
}

// FlowHealth represents one payment flow
type FlowHealth struct {
	Status     string   `json:"status"`
	Configured bool     `json:"configured"`
	Merchants  []string `json:"merchants"`
}

// SystemHealth represents system resource health
type SystemHealth struct {
	Memory     *MemoryHealth `json:"memory"`
	Disk       *DiskHealth   `json:"disk"`
	GoRoutines int           `json:"goroutines"`
}

// MemoryHealth represents memory usage
type MemoryHealth struct {
	Alloc        string  `json:"alloc"`
	TotalAlloc   string  `json:"total_alloc"`
	Sys          string  `json:"sys"`
	GCRuns       uint32  `json:"gc_runs"`
	UsagePercent float64 `json:"usage_percent"`
}

// DiskHealth represents disk usage
type DiskHealth struct {
	Available    string  `json:"available"`
	Used         string  `json:"used"`
	Total        string  `json:"total"`
	UsagePercent float64 `json:"usage_percent"`
	Status       string  `json:"status"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status      string `json:"status"`
	Healthy     bool   `json:"healthy"`
	Description string `json:"description,omitempty"`
}

// NewHealthHandler creates a new health handler. storage may be nil when
// configuration is held in memory only.
func NewHealthHandler(storage StoragePinger, merchants MerchantLister, logging bool, version, environment string) *HealthHandler {
	return &HealthHandler{
		storage:     storage,
		merchants:   merchants,
		logging:     logging,
		version:     version,
		environment: environment,
		startTime:   time.Now(),
		diskPath:    "/",
	}
}

// CheckHealth reports storage, flow and resource health. It answers 503
// only when the service cannot serve payments at all.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := &HealthStatus{
		Version:     h.version,
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.startTime).String(),
		Environment: h.environment,
		Storage:     h.checkStorage(ctx),
		Flows:       h.checkFlows(),
		System:      h.checkSystem(),
		Services:    h.checkServices(),
	}
	health.Status = determineOverallStatus(health)

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	_ = response.WriteJSON(w, statusCode, response.Response{
		Code:    statusCode,
		Success: health.Status != "unhealthy",
		Message: fmt.Sprintf("Service is %s", health.Status),
		Data:    health,
	})
}

func (h *HealthHandler) checkStorage(ctx context.Context) *StorageHealth {
	if h.storage == nil {
		return &StorageHealth{Status: "not_configured"}
	}

	start := time.Now()
	err := h.storage.Ping(ctx)
	elapsed := time.Since(start)

	sh := &StorageHealth{ResponseTimeMs: elapsed.Milliseconds()}
	switch {
	case err != nil:
		sh.Status = "unhealthy"
		sh.Error = err.Error()
	case elapsed > time.Second:
		sh.Status = "degraded"
		sh.Connected = true
	default:
		sh.Status = "healthy"
		sh.Connected = true
	}
	return sh
}

func (h *HealthHandler) checkFlows() map[provider.Flow]*FlowHealth {
	flows := make(map[provider.Flow]*FlowHealth, 2)
	for _, flow := range []provider.Flow{provider.FlowEpay, provider.FlowTokenPay} {
		merchants := []string{}
		if h.merchants != nil {
			merchants = h.merchants.Merchants(flow)
		}
		fh := &FlowHealth{Status: "not_configured", Merchants: merchants}
		if len(merchants) > 0 {
			fh.Status = "healthy"
			fh.Configured = true
		}
		flows[flow] = fh
	}
	return flows
}

func (h *HealthHandler) checkSystem() *SystemHealth {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &SystemHealth{
		Memory: &MemoryHealth{
			Alloc:        formatBytes(memStats.Alloc),
			TotalAlloc:   formatBytes(memStats.TotalAlloc),
			Sys:          formatBytes(memStats.Sys),
			GCRuns:       memStats.NumGC,
			UsagePercent: calculateMemoryUsagePercent(memStats),
		},
		Disk:       getDiskUsage(h.diskPath),
		GoRoutines: runtime.NumGoroutine(),
	}
}

func (h *HealthHandler) checkServices() map[string]*ServiceHealth {
	services := map[string]*ServiceHealth{
		"opensearch_logger": {
			Status:      "disabled",
			Description: "Gateway exchange logging to OpenSearch",
		},
		"merchant_config": {
			Status:      "unhealthy",
			Description: "Merchant configuration store",
		},
	}
	if h.logging {
		services["opensearch_logger"].Status = "healthy"
		services["opensearch_logger"].Healthy = true
	}
	if h.merchants != nil {
		services["merchant_config"].Status = "healthy"
		services["merchant_config"].Healthy = true
	}
	return services
}

// determineOverallStatus: unhealthy when storage is down, the config
// service is missing, or no flow has a merchant; degraded on resource
// pressure or slow storage.
func determineOverallStatus(health *HealthStatus) string {
	if health.Storage != nil && health.Storage.Status == "unhealthy" {
		return "unhealthy"
	}
	if svc, ok := health.Services["merchant_config"]; ok && !svc.Healthy {
		return "unhealthy"
	}

	configured := false
	for _, flow := range health.Flows {
		if flow.Configured {
			configured = true
		}
	}
	if !configured {
		return "unhealthy"
	}

	if health.System != nil {
		if health.System.Memory != nil && health.System.Memory.UsagePercent > 90 {
			return "degraded"
		}
		if health.System.Disk != nil && health.System.Disk.UsagePercent > 90 {
			return "degraded"
		}
	}
	if health.Storage != nil && health.Storage.Status == "degraded" {
		return "degraded"
	}
	return "healthy"
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func calculateMemoryUsagePercent(memStats runtime.MemStats) float64 {
	if memStats.Sys == 0 {
		return 0
	}
	return (float64(memStats.Alloc) / float64(memStats.Sys)) * 100
}

func getDiskUsage(path string) *DiskHealth {
	disk := &DiskHealth{Status: "unknown"}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		disk.Status = "error"
		return disk
	}

	available := stat.Bavail * uint64(stat.Bsize)
	total := stat.Blocks * uint64(stat.Bsize)
	used := total - (stat.Bfree * uint64(stat.Bsize))
	if total == 0 {
		return disk
	}

	disk.Available = formatBytes(available)
	disk.Total = formatBytes(total)
	disk.Used = formatBytes(used)
	disk.UsagePercent = (float64(used) / float64(total)) * 100

	switch {
	case disk.UsagePercent > 90:
		disk.Status = "critical"
	case disk.UsagePercent > 80:
		disk.Status = "warning"
	default:
		disk.Status = "healthy"
	}
	return disk
}
