package handlers

import (
	"log/slog"
	"net/http"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
	"github.com/ztlan/warden/internal/core/services/attestation"
	"github.com/ztlan/warden/internal/core/services/flowstats"
	"github.com/ztlan/warden/internal/core/services/profiler"
	"github.com/ztlan/warden/internal/core/services/session"
)

// SessionHandler serves the device-facing token lifecycle and the data
// ingest path.
type SessionHandler struct {
	Sessions *session.Manager
	Attest   *attestation.Scheduler
	Flows    *flowstats.Aggregator
	Profiler *profiler.Profiler
	Store    ports.IdentityStore
}

// HandleGetToken issues a session token to a device in good standing.
func (h *SessionHandler) HandleGetToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID string `json:"device_id"`
		MAC      string `json:"mac"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	token, err := h.Sessions.Issue(r.Context(), req.DeviceID, req.MAC)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]string{"token": token})
}

// HandleAuth validates a token. Failures answer 200 with
// authorized=false; only malformed requests error.
func (h *SessionHandler) HandleAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID string `json:"device_id"`
		Token    string `json:"token"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Sessions.Authenticate(req.DeviceID, req.Token); err != nil {
		reason, _ := domain.IsAuthz(err)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "success",
			"authorized": false,
			"reason":     reason,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"authorized": true,
	})
}

type dataRequest struct {
	DeviceID string `json:"device_id"`
	Token    string `json:"token"`
	DstIP    string `json:"dst_ip"`
	DstPort  int    `json:"dst_port"`
	Protocol string `json:"protocol"`
	Packets  int64  `json:"packets"`
	Bytes    int64  `json:"bytes"`
	Size     int    `json:"size"`
}

// HandleData ingests one device data submission. The submission counts
// as a heartbeat and feeds both the profiler and the flow aggregator.
func (h *SessionHandler) HandleData(w http.ResponseWriter, r *http.Request) {
	var req dataRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Sessions.SubmitData(req.DeviceID, req.Token); err != nil {
		if reason, ok := domain.IsAuthz(err); ok {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"status": "rejected",
				"reason": reason,
			})
			return
		}
		writeError(w, err)
		return
	}

	h.Attest.RecordHeartbeat(req.DeviceID)
	if err := h.Store.TouchLastSeen(r.Context(), req.DeviceID); err != nil {
		// Allow-listed devices have no identity row yet.
		slog.Debug("last_seen not updated", "device_id", req.DeviceID, "error", err)
	}

	packets := req.Packets
	if packets == 0 {
		packets = 1
	}
	bytes := req.Bytes
	if bytes == 0 {
		bytes = int64(req.Size)
	}
	h.Flows.Ingest(req.DeviceID, &domain.FlowSample{
		DstIP:    req.DstIP,
		DstPort:  req.DstPort,
		Protocol: req.Protocol,
		Packets:  packets,
		Bytes:    bytes,
	})
	h.Profiler.Record(req.DeviceID, &domain.PacketInfo{
		DstIP:    req.DstIP,
		DstPort:  req.DstPort,
		Protocol: req.Protocol,
		Size:     req.Size,
	})

	writeMessage(w, "data accepted")
}
