package handlers

import (
	"net/http"

	"github.com/ztlan/warden/internal/adapters/web/middleware"
	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
	"github.com/ztlan/warden/internal/core/services/admission"
	"github.com/ztlan/warden/internal/core/services/session"
)

// AdmissionHandler serves the operator-facing admission queue.
type AdmissionHandler struct {
	Admission *admission.Service
	Pending   ports.PendingStore
	Sessions  *session.Manager
}

// HandlePendingDevices lists entries awaiting an operator decision.
func (h *AdmissionHandler) HandlePendingDevices(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Pending.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"pending": entries, "count": len(entries)})
}

type decisionRequest struct {
	MAC   string `json:"mac"`
	Notes string `json:"notes"`
}

// HandleApproveDevice approves a queued device and runs the onboarding
// pipeline. Re-approving an onboarded device is an idempotent success.
func (h *AdmissionHandler) HandleApproveDevice(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	device, err := h.Admission.Approve(r.Context(), req.MAC, req.Notes, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, device)
}

// HandleRejectDevice terminally declines a queued device.
func (h *AdmissionHandler) HandleRejectDevice(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := h.Admission.Reject(r.Context(), req.MAC, req.Notes, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, entry)
}

// HandleDeviceHistory returns the admission audit trail for one MAC, or
// for every MAC when the query parameter is absent.
func (h *AdmissionHandler) HandleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	mac := r.URL.Query().Get("mac")
	entries, err := h.Pending.History(r.Context(), mac, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"history": entries, "count": len(entries)})
}

// HandleFailedTokenRequests exposes the rejected token request ledger.
func (h *AdmissionHandler) HandleFailedTokenRequests(w http.ResponseWriter, r *http.Request) {
	failed := h.Sessions.FailedRequests()
	writeSuccess(w, map[string]any{"failed_requests": failed, "count": len(failed)})
}

// HandleAuthorizeDevice adds a MAC to the session allow-list, clearing
// its ledger entries.
func (h *AdmissionHandler) HandleAuthorizeDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MAC string `json:"mac"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Sessions.AuthorizeDevice(req.MAC); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, "device authorized")
}

// actorFrom names the operator behind a request for the audit trail.
func actorFrom(r *http.Request) string {
	if user, ok := r.Context().Value(middleware.UserContextKey).(*domain.User); ok && user != nil {
		return user.Username
	}
	return "operator"
}
