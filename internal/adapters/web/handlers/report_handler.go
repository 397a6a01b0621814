package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ztlan/warden/internal/adapters/reporting"
	"github.com/ztlan/warden/internal/core/ports"
	"github.com/ztlan/warden/internal/core/services/alerts"
)

// ReportHandler renders the downloadable security posture report.
type ReportHandler struct {
	Store    ports.IdentityStore
	Pending  ports.PendingStore
	Alerts   *alerts.Store
	Scorer   ports.TrustScorer
	Exporter *reporting.PDFExporter
}

// HandleSecurityReport streams the posture report as a PDF attachment.
func (h *ReportHandler) HandleSecurityReport(w http.ResponseWriter, r *http.Request) {
	devices, err := h.Store.ListDevices(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	for _, d := range devices {
		d.TrustScore = h.Scorer.Get(d.DeviceID)
	}
	pending, err := h.Pending.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	report := &reporting.PostureReport{
		GeneratedAt: time.Now().UTC(),
		Devices:     devices,
		Pending:     pending,
		Alerts:      h.Alerts.List(),
	}
	data, err := h.Exporter.Export(report)
	if err != nil {
		writeError(w, err)
		return
	}

	filename := fmt.Sprintf("security_report_%s.pdf", report.GeneratedAt.Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
