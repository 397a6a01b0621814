package handlers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"

	"github.com/ztlan/warden/internal/adapters/dataplane"
	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
	"github.com/ztlan/warden/internal/core/services/alerts"
	"github.com/ztlan/warden/internal/core/services/anomaly"
	"github.com/ztlan/warden/internal/core/services/flowstats"
	"github.com/ztlan/warden/internal/core/services/policy"
	"github.com/ztlan/warden/internal/core/services/session"
	"github.com/ztlan/warden/internal/core/services/trust"
)

// RuleInspector exposes the currently programmed rules; only some
// installers can enumerate them.
type RuleInspector interface {
	Rules() []*dataplane.InstalledRule
}

// ObservabilityHandler serves the read-mostly operator dashboards:
// health, traffic aggregates, policies, alerts and the toggle surface.
type ObservabilityHandler struct {
	Store     ports.IdentityStore
	Scorer    *trust.Scorer
	Flows     *flowstats.Aggregator
	Detector  *anomaly.Detector
	Adapter   *policy.Adapter
	Toggles   *policy.Toggles
	Alerts    *alerts.Store
	Sessions  *session.Manager
	Inspector RuleInspector
	WS        interface{ ClientCount() int }

	started time.Time
}

// NewObservabilityHandler stamps the process start time for uptime.
func NewObservabilityHandler() *ObservabilityHandler {
	return &ObservabilityHandler{started: time.Now()}
}

// HandleHealthMetrics reports process and control-plane health.
func (h *ObservabilityHandler) HandleHealthMetrics(w http.ResponseWriter, r *http.Request) {
	devices, err := h.Store.ListDevices(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	active, quarantined, revoked := 0, 0, 0
	for _, d := range devices {
		switch d.Status {
		case domain.StatusActive:
			active++
		case domain.StatusQuarantined:
			quarantined++
		case domain.StatusRevoked:
			revoked++
		}
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	payload := map[string]any{
		"uptime_seconds":      int(time.Since(h.started).Seconds()),
		"goroutines":          runtime.NumGoroutine(),
		"heap_alloc_bytes":    mem.HeapAlloc,
		"devices_total":       len(devices),
		"devices_active":      active,
		"devices_quarantined": quarantined,
		"devices_revoked":     revoked,
		"active_sessions":     h.Sessions.ActiveSessions(),
	}
	if h.WS != nil {
		payload["ws_clients"] = h.WS.ClientCount()
	}
	writeSuccess(w, payload)
}

// HandleGetData returns per-device traffic aggregates. With device_id it
// returns one window plus trust history; without it, every device.
func (h *ObservabilityHandler) HandleGetData(w http.ResponseWriter, r *http.Request) {
	if deviceID := r.URL.Query().Get("device_id"); deviceID != "" {
		stats := h.Flows.DeviceStats(deviceID, 0)
		writeSuccess(w, map[string]any{
			"stats":         stats,
			"trust_score":   h.Scorer.Get(deviceID),
			"trust_history": h.Scorer.History(deviceID),
		})
		return
	}
	writeSuccess(w, map[string]any{"devices": h.Flows.AllDeviceStats(0)})
}

// HandleGetPolicies lists stored device policies and the live rules.
func (h *ObservabilityHandler) HandleGetPolicies(w http.ResponseWriter, r *http.Request) {
	devices, err := h.Store.ListDevices(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	policies := make(map[string]any, len(devices))
	for _, d := range devices {
		p, err := h.Store.GetPolicy(r.Context(), d.DeviceID)
		if err != nil {
			continue
		}
		policies[d.DeviceID] = p
	}
	payload := map[string]any{
		"policies": policies,
		"toggles":  h.Toggles.List(),
	}
	if h.Inspector != nil {
		payload["installed_rules"] = h.Inspector.Rules()
	}
	writeSuccess(w, payload)
}

// HandlePolicyLogs returns the enforcement change history.
func (h *ObservabilityHandler) HandlePolicyLogs(w http.ResponseWriter, r *http.Request) {
	if deviceID := r.URL.Query().Get("device_id"); deviceID != "" {
		writeSuccess(w, map[string]any{"logs": h.Adapter.History(deviceID)})
		return
	}
	logs := h.Adapter.AllHistory()
	writeSuccess(w, map[string]any{"logs": logs, "count": len(logs)})
}

// HandleClearPolicyLogs drops the enforcement history.
func (h *ObservabilityHandler) HandleClearPolicyLogs(w http.ResponseWriter, r *http.Request) {
	h.Adapter.ClearHistory()
	writeMessage(w, "policy logs cleared")
}

// HandleTogglePolicy flips a named enforcement feature.
func (h *ObservabilityHandler) HandleTogglePolicy(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	enabled, err := h.Toggles.Flip(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"policy": name, "enabled": enabled})
}

// HandleSecurityAlerts lists all alerts plus recent anomaly events.
func (h *ObservabilityHandler) HandleSecurityAlerts(w http.ResponseWriter, r *http.Request) {
	all := h.Alerts.List()
	writeSuccess(w, map[string]any{
		"alerts":    all,
		"count":     len(all),
		"anomalies": h.Detector.Recent(),
	})
}

// HandleDeviceAlerts lists alerts for one device.
func (h *ObservabilityHandler) HandleDeviceAlerts(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	forDevice := h.Alerts.ForDevice(deviceID)
	writeSuccess(w, map[string]any{"alerts": forDevice, "count": len(forDevice)})
}

// HandleAcknowledgeAlert marks one alert as seen.
func (h *ObservabilityHandler) HandleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.Alerts.Acknowledge(id) {
		writeError(w, fmt.Errorf("%w: alert %s", domain.ErrNotFound, id))
		return
	}
	writeMessage(w, "alert acknowledged")
}

// HandleSDNMetrics summarizes the programmed data plane.
func (h *ObservabilityHandler) HandleSDNMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{}
	if h.Inspector != nil {
		rules := h.Inspector.Rules()
		byAction := make(map[string]int)
		for _, rule := range rules {
			byAction[string(rule.Action)]++
		}
		payload["rule_count"] = len(rules)
		payload["rules_by_action"] = byAction
	} else {
		payload["rule_count"] = 0
		payload["degraded"] = true
	}
	writeSuccess(w, payload)
}
