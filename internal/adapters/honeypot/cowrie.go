// Package honeypot reads cowrie-style JSON event logs and turns known
// event ids into threat records for the ingest worker.
package honeypot

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
)

// Known cowrie event ids. Anything else in the log is skipped.
const (
	EventLoginSuccess = "cowrie.login.success"
	EventLoginFailed  = "cowrie.login.failed"
	EventCommandInput = "cowrie.command.input"
	EventFileDownload = "cowrie.session.file_download"
	EventClientVer    = "cowrie.client.version"
)

var eventSeverity = map[string]domain.Severity{
	EventLoginSuccess: domain.SeverityHigh,
	EventFileDownload: domain.SeverityHigh,
	EventCommandInput: domain.SeverityMedium,
	EventLoginFailed:  domain.SeverityMedium,
	EventClientVer:    domain.SeverityLow,
}

// CowrieSource tails a cowrie JSON log file.
type CowrieSource struct {
	path string
}

var _ ports.HoneypotSource = (*CowrieSource)(nil)

// NewCowrieSource wraps the given log path. The file may not exist yet;
// reads degrade to empty slices.
func NewCowrieSource(path string) *CowrieSource {
	return &CowrieSource{path: path}
}

type cowrieEvent struct {
	EventID   string `json:"eventid"`
	SrcIP     string `json:"src_ip"`
	Timestamp string `json:"timestamp"`
	Username  string `json:"username"`
	Input     string `json:"input"`
	URL       string `json:"url"`
	Version   string `json:"version"`
}

// Events returns threat records for known events newer than since.
// Malformed lines are skipped, not fatal.
func (s *CowrieSource) Events(ctx context.Context, since time.Time) ([]*domain.ThreatRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open honeypot log: %v", domain.ErrUnavailable, err)
	}
	defer f.Close()

	var records []*domain.ThreatRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return records, ctx.Err()
		}
		var ev cowrieEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		sev, known := eventSeverity[ev.EventID]
		if !known || ev.SrcIP == "" {
			continue
		}
		ts := parseCowrieTime(ev.Timestamp)
		if !ts.After(since) {
			continue
		}
		records = append(records, &domain.ThreatRecord{
			SourceIP:   ev.SrcIP,
			EventType:  ev.EventID,
			Severity:   sev,
			Detail:     eventDetail(&ev),
			Timestamp:  ts,
			ReportedBy: "cowrie",
		})
	}
	return records, scanner.Err()
}

// ActivityBySource counts known events per source IP over the whole log.
func (s *CowrieSource) ActivityBySource(ctx context.Context) (map[string]int, error) {
	records, err := s.Events(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.SourceIP]++
	}
	return counts, nil
}

func eventDetail(ev *cowrieEvent) string {
	switch ev.EventID {
	case EventLoginSuccess, EventLoginFailed:
		return "login as " + ev.Username
	case EventCommandInput:
		return ev.Input
	case EventFileDownload:
		return ev.URL
	case EventClientVer:
		return ev.Version
	}
	return ""
}

// parseCowrieTime accepts cowrie's microsecond ISO format and plain RFC3339.
func parseCowrieTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.999999Z", time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
