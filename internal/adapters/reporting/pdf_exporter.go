// Package reporting renders the security posture report.
package reporting

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/ztlan/warden/internal/core/domain"
)

// PostureReport is the input snapshot for the PDF export.
type PostureReport struct {
	GeneratedAt time.Time
	Devices     []*domain.Device
	Pending     []*domain.PendingDevice
	Alerts      []*domain.Alert
}

// PDFExporter renders posture reports to PDF.
type PDFExporter struct{}

// NewPDFExporter creates a new PDF exporter instance.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Export generates the report document.
func (e *PDFExporter) Export(report *PostureReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	e.addHeader(pdf, report)
	e.addSummary(pdf, report)
	e.addDeviceTable(pdf, report)
	e.addAlertTable(pdf, report)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, report *PostureReport) {
	pdf.SetFont("Arial", "B", 22)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 14, "Network Security Posture", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (e *PDFExporter) addSummary(pdf *gofpdf.Fpdf, report *PostureReport) {
	active, quarantined, lowTrust := 0, 0, 0
	for _, d := range report.Devices {
		switch d.Status {
		case domain.StatusActive:
			active++
		case domain.StatusQuarantined:
			quarantined++
		}
		if d.TrustScore < 50 {
			lowTrust++
		}
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 8, "Overview", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	rows := []string{
		fmt.Sprintf("Managed devices: %d (active %d, quarantined %d)", len(report.Devices), active, quarantined),
		fmt.Sprintf("Devices below monitored trust: %d", lowTrust),
		fmt.Sprintf("Awaiting admission: %d", len(report.Pending)),
		fmt.Sprintf("Open security alerts: %d", len(report.Alerts)),
	}
	for _, row := range rows {
		pdf.CellFormat(0, 6, row, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func (e *PDFExporter) addDeviceTable(pdf *gofpdf.Fpdf, report *PostureReport) {
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Devices", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	widths := []float64{52, 40, 24, 20, 44}
	headers := []string{"Device ID", "MAC", "Status", "Trust", "Last Seen"}
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, d := range report.Devices {
		pdf.CellFormat(widths[0], 6, d.DeviceID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, d.MAC, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, string(d.Status), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, fmt.Sprintf("%d", d.TrustScore), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, d.LastSeen.Format("2006-01-02 15:04"), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func (e *PDFExporter) addAlertTable(pdf *gofpdf.Fpdf, report *PostureReport) {
	if len(report.Alerts) == 0 {
		return
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Security Alerts", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	widths := []float64{52, 30, 20, 78}
	headers := []string{"Device ID", "Type", "Severity", "Message"}
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, a := range report.Alerts {
		msg := a.Message
		if len(msg) > 60 {
			msg = msg[:57] + "..."
		}
		pdf.CellFormat(widths[0], 6, a.DeviceID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, a.Type, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, string(a.Severity), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, msg, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}
}
