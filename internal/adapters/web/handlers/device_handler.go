package handlers

import (
	"net/http"
	"time"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
	"github.com/ztlan/warden/internal/core/services/admission"
	"github.com/ztlan/warden/internal/core/services/policy"
	"github.com/ztlan/warden/internal/core/services/profiler"
)

// DeviceHandler serves onboarding, profiling and topology endpoints.
type DeviceHandler struct {
	Admission *admission.Service
	Profiler  *profiler.Profiler
	Generator *policy.Generator
	Store     ports.IdentityStore
	CA        ports.CertificateAuthority
	Scorer    ports.TrustScorer
}

type onboardRequest struct {
	MAC        string `json:"mac"`
	DeviceID   string `json:"device_id"`
	DeviceType string `json:"device_type"`
	DeviceInfo string `json:"device_info"`
}

// HandleOnboard is the direct operator-initiated onboarding path.
func (h *DeviceHandler) HandleOnboard(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	device, err := h.Admission.Onboard(r.Context(), req.MAC, req.DeviceID, req.DeviceType, req.DeviceInfo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, device)
}

// HandleFinalizeOnboarding force-closes an active profiling window and
// generates the least-privilege policy from the resulting baseline.
func (h *DeviceHandler) HandleFinalizeOnboarding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID string `json:"device_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	baseline, err := h.Profiler.Finalize(r.Context(), req.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	device, err := h.Store.GetDevice(r.Context(), req.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	devicePolicy, err := h.Generator.Generate(r.Context(), device, baseline)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{
		"baseline": baseline,
		"policy":   devicePolicy,
	})
}

// HandleProfilingStatus reports elapsed and remaining profiling time.
func (h *DeviceHandler) HandleProfilingStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		writeError(w, domain.Validationf("device_id query parameter is required"))
		return
	}
	elapsed, remaining, active := h.Profiler.Status(deviceID)
	writeSuccess(w, map[string]any{
		"device_id":         deviceID,
		"profiling":         active,
		"elapsed_seconds":   elapsed,
		"remaining_seconds": remaining,
	})
}

// HandleVerifyCertificate re-checks a device credential against the CA.
func (h *DeviceHandler) HandleVerifyCertificate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID string `json:"device_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	device, err := h.Store.GetDevice(r.Context(), req.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	valid := false
	if device.HasCredential() {
		valid, err = h.CA.Verify(r.Context(), device.CertPath)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeSuccess(w, map[string]any{
		"device_id": req.DeviceID,
		"valid":     valid,
	})
}

// HandleRevoke revokes a device credential; idempotent over revoked devices.
func (h *DeviceHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID string `json:"device_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Admission.Revoke(r.Context(), req.DeviceID); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, "device revoked")
}

type topologyNode struct {
	DeviceID   string    `json:"device_id"`
	MAC        string    `json:"mac,omitempty"`
	IP         string    `json:"ip,omitempty"`
	Status     string    `json:"status"`
	DeviceType string    `json:"device_type,omitempty"`
	TrustScore int       `json:"trust_score"`
	TrustLevel string    `json:"trust_level"`
	LastSeen   time.Time `json:"last_seen"`
}

// HandleTopology lists managed devices without link-layer addresses.
func (h *DeviceHandler) HandleTopology(w http.ResponseWriter, r *http.Request) {
	h.topology(w, r, false)
}

// HandleTopologyWithMAC lists managed devices including MACs.
func (h *DeviceHandler) HandleTopologyWithMAC(w http.ResponseWriter, r *http.Request) {
	h.topology(w, r, true)
}

func (h *DeviceHandler) topology(w http.ResponseWriter, r *http.Request, withMAC bool) {
	devices, err := h.Store.ListDevices(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	nodes := make([]topologyNode, 0, len(devices))
	for _, d := range devices {
		score := h.Scorer.Get(d.DeviceID)
		node := topologyNode{
			DeviceID:   d.DeviceID,
			IP:         d.IP,
			Status:     string(d.Status),
			DeviceType: d.DeviceType,
			TrustScore: score,
			TrustLevel: string(domain.TrustLevelFor(score)),
			LastSeen:   d.LastSeen,
		}
		if withMAC {
			node.MAC = d.MAC
		}
		nodes = append(nodes, node)
	}
	writeSuccess(w, map[string]any{"devices": nodes, "count": len(nodes)})
}
