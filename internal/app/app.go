// Package app wires the stores, services, workers and servers into one
// runnable control plane.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ztlan/warden/internal/adapters/ca"
	"github.com/ztlan/warden/internal/adapters/dataplane"
	"github.com/ztlan/warden/internal/adapters/grpcserver"
	"github.com/ztlan/warden/internal/adapters/honeypot"
	"github.com/ztlan/warden/internal/adapters/linklayer"
	"github.com/ztlan/warden/internal/adapters/reporting"
	"github.com/ztlan/warden/internal/adapters/storage"
	"github.com/ztlan/warden/internal/adapters/web"
	"github.com/ztlan/warden/internal/adapters/web/handlers"
	"github.com/ztlan/warden/internal/adapters/web/server"
	"github.com/ztlan/warden/internal/config"
	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
	"github.com/ztlan/warden/internal/core/services/admission"
	"github.com/ztlan/warden/internal/core/services/alerts"
	"github.com/ztlan/warden/internal/core/services/anomaly"
	"github.com/ztlan/warden/internal/core/services/attestation"
	"github.com/ztlan/warden/internal/core/services/auth"
	"github.com/ztlan/warden/internal/core/services/flowstats"
	"github.com/ztlan/warden/internal/core/services/orchestrator"
	"github.com/ztlan/warden/internal/core/services/policy"
	"github.com/ztlan/warden/internal/core/services/profiler"
	"github.com/ztlan/warden/internal/core/services/session"
	"github.com/ztlan/warden/internal/core/services/trust"
)

// Application owns every long-lived component and their lifecycles.
type Application struct {
	cfg *config.Config

	identity  *storage.IdentityStore
	pending   *storage.PendingStore
	authority *ca.Authority
	installer ports.RuleInstaller
	inspector *dataplane.MemoryInstaller
	sniffer   *linklayer.ARPSniffer
	honeypot  ports.HoneypotSource

	wsManager *web.WSManager
	alerts    *alerts.Store
	scorer    *trust.Scorer
	toggles   *policy.Toggles
	adapter   *policy.Adapter
	generator *policy.Generator
	profiler  *profiler.Profiler
	flows     *flowstats.Aggregator
	detector  *anomaly.Detector
	orch      *orchestrator.Orchestrator
	attest    *attestation.Scheduler
	admission *admission.Service
	sessions  *session.Manager
	authSvc   *auth.Service

	web  *server.Server
	grpc *grpcserver.Server

	// acted dedups anomaly events already routed to trust and alerts.
	actedMu sync.Mutex
	acted   map[string]time.Time

	honeypotSince time.Time
}

// New builds the full object graph. Nothing starts running until Run.
func New(cfg *config.Config) (*Application, error) {
	a := &Application{
		cfg:   cfg,
		acted: make(map[string]time.Time),
	}

	var err error
	if a.identity, err = storage.NewIdentityStore(cfg.IdentityDBPath); err != nil {
		return nil, fmt.Errorf("open identity store: %w", err)
	}
	if a.authority, err = ca.New(cfg.CertDir); err != nil {
		return nil, fmt.Errorf("init certificate authority: %w", err)
	}
	if a.pending, err = storage.NewPendingStore(cfg.PendingDBPath); err != nil {
		return nil, fmt.Errorf("open pending store: %w", err)
	}

	if cfg.DataPlaneMode == "none" {
		a.installer = dataplane.NewNoop()
	} else {
		a.inspector = dataplane.NewMemory()
		a.installer = a.inspector
	}
	a.wsManager = web.NewWSManager()
	a.alerts = alerts.NewStore(a.wsManager)

	a.scorer = trust.NewScorer(a.identity)
	a.toggles = policy.NewToggles(policy.ToggleTrustCascade, policy.ToggleOrchestrator, policy.TogglePolicySweep)
	a.adapter = policy.NewAdapter(a.identity, a.installer, a.toggles)
	a.generator = policy.NewGenerator(a.identity)
	a.profiler = profiler.New(a.identity, cfg.ProfilingWindow)
	a.detector = anomaly.New(a.identity)
	a.orch = orchestrator.New(a.identity, a.scorer, a.detector, a.installer)
	a.attest = attestation.New(a.identity, a.authority, a.scorer, cfg.AttestationInterval)

	a.flows = flowstats.New(a.installer, a.identity, func(mac string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.admission.Observe(ctx, mac)
	})

	a.admission = admission.New(a.linkLayerSources(), a.identity, a.pending, a.authority, a.profiler, a.attest)

	a.sessions = session.NewManager(a.identity, a.pending, session.Options{
		TTL:                   cfg.SessionTTL,
		AllowInsecureAutoAuth: cfg.AllowInsecureAutoAuth,
		MaintStartHour:        cfg.MaintStartHour,
		MaintEndHour:          cfg.MaintEndHour,
	})

	a.authSvc = auth.NewService()
	if err := a.authSvc.SeedAdmin(cfg.AdminPassword); err != nil {
		return nil, fmt.Errorf("seed admin account: %w", err)
	}

	if cfg.HoneypotLog != "" {
		a.honeypot = honeypot.NewCowrieSource(cfg.HoneypotLog)
	}

	a.scorer.RegisterListener(a.adapter.OnTrustChange)
	a.scorer.RegisterListener(func(deviceID string, oldScore, newScore int, reason string) {
		a.wsManager.Broadcast("trust_change", map[string]any{
			"device_id": deviceID,
			"old_score": oldScore,
			"new_score": newScore,
			"reason":    reason,
		})
	})

	a.grpc = grpcserver.New(cfg.GRPCAddr, a.inspector != nil)
	a.web = a.buildWebServer()
	return a, nil
}

func (a *Application) linkLayerSources() []ports.LinkLayerSource {
	var sources []ports.LinkLayerSource
	if a.cfg.HostapdLog != "" {
		sources = append(sources, linklayer.NewHostapdSource(a.cfg.HostapdLog))
	}
	sources = append(sources, linklayer.NewARPTableSource(a.cfg.WifiInterface))
	if a.cfg.EnableSniffer {
		sniffer, err := linklayer.NewARPSniffer(a.cfg.WifiInterface)
		if err != nil {
			slog.Warn("live capture unavailable", "iface", a.cfg.WifiInterface, "error", err)
		} else {
			a.sniffer = sniffer
			sources = append(sources, sniffer)
		}
	}
	return sources
}

func (a *Application) buildWebServer() *server.Server {
	observability := handlers.NewObservabilityHandler()
	observability.Store = a.identity
	observability.Scorer = a.scorer
	observability.Flows = a.flows
	observability.Detector = a.detector
	observability.Adapter = a.adapter
	observability.Toggles = a.toggles
	observability.Alerts = a.alerts
	observability.Sessions = a.sessions
	if a.inspector != nil {
		observability.Inspector = a.inspector
	}
	observability.WS = a.wsManager

	return &server.Server{
		Addr:        a.cfg.Addr,
		WSManager:   a.wsManager,
		AuthHandler: handlers.NewAuthHandler(a.authSvc),
		Device: &handlers.DeviceHandler{
			Admission: a.admission,
			Profiler:  a.profiler,
			Generator: a.generator,
			Store:     a.identity,
			CA:        a.authority,
			Scorer:    a.scorer,
		},
		Session: &handlers.SessionHandler{
			Sessions: a.sessions,
			Attest:   a.attest,
			Flows:    a.flows,
			Profiler: a.profiler,
			Store:    a.identity,
		},
		Admission: &handlers.AdmissionHandler{
			Admission: a.admission,
			Pending:   a.pending,
			Sessions:  a.sessions,
		},
		Observability: observability,
		Report: &handlers.ReportHandler{
			Store:    a.identity,
			Pending:  a.pending,
			Alerts:   a.alerts,
			Scorer:   a.scorer,
			Exporter: reporting.NewPDFExporter(),
		},
	}
}

// Run hydrates state, starts the workers and both servers, and blocks
// until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.hydrate(ctx); err != nil {
		return err
	}

	// A failing server must also stop the workers.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := &pool{}
	workers.add("admission_poller", 2*time.Second, a.admission.PollOnce)
	workers.add("profiling_monitor", 30*time.Second, a.finalizeExpiredBaselines)
	workers.add("flow_poller", 10*time.Second, a.flows.PollOnce)
	workers.add("anomaly_tick", 10*time.Second, a.anomalyTick)
	workers.add("analyst_replay", 30*time.Second, a.analystReplay)
	workers.add("attestation", a.cfg.AttestationInterval, a.attest.TickAll)
	workers.add("policy_sweep", 60*time.Second, a.policySweep)
	if a.honeypot != nil {
		workers.add("honeypot_ingest", 10*time.Second, a.honeypotIngest)
		workers.add("activity_updater", 10*time.Second, a.activityUpdate)
	}
	workers.start(ctx)

	errCh := make(chan error, 2)
	go func() { errCh <- a.web.Run(ctx) }()
	go func() { errCh <- a.grpc.Run(ctx) }()

	var err error
wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case e := <-errCh:
			// A disabled or cleanly stopped server reports nil.
			if e != nil {
				err = e
				break wait
			}
		}
	}

	cancel()
	workers.wait()
	a.close()
	return err
}

func (a *Application) hydrate(ctx context.Context) error {
	if err := a.scorer.Hydrate(ctx); err != nil {
		return fmt.Errorf("hydrate trust scores: %w", err)
	}
	if err := a.admission.Hydrate(ctx); err != nil {
		return fmt.Errorf("hydrate admission state: %w", err)
	}
	if err := a.attest.StartAll(ctx); err != nil {
		return fmt.Errorf("start attestation: %w", err)
	}
	return nil
}

func (a *Application) close() {
	if a.sniffer != nil {
		a.sniffer.Close()
	}
	if err := a.pending.Close(); err != nil {
		slog.Warn("pending store close failed", "error", err)
	}
	if err := a.identity.Close(); err != nil {
		slog.Warn("identity store close failed", "error", err)
	}
}

func (a *Application) finalizeExpiredBaselines(ctx context.Context) {
	for deviceID, baseline := range a.profiler.FinalizeExpired(ctx) {
		device, err := a.identity.GetDevice(ctx, deviceID)
		if err != nil {
			slog.Warn("policy generation skipped", "device_id", deviceID, "error", err)
			continue
		}
		if _, err := a.generator.Generate(ctx, device, baseline); err != nil {
			slog.Warn("policy generation failed", "device_id", deviceID, "error", err)
		}
	}
}

func (a *Application) anomalyTick(ctx context.Context) {
	events := a.detector.RunOnce(ctx, a.flows.AllDeviceStats(0))
	a.routeAnomalies(ctx, events)
}

// analystReplay re-drains retained events so nothing detected outside
// the tick path goes unacted. The acted-set dedup makes this safe.
func (a *Application) analystReplay(ctx context.Context) {
	a.routeAnomalies(ctx, a.detector.Recent())
}

func (a *Application) routeAnomalies(ctx context.Context, events []*domain.AnomalyEvent) {
	for _, event := range events {
		if ctx.Err() != nil {
			return
		}
		if !a.markActed(event.Key()) {
			continue
		}

		a.scorer.RecordAnomaly(event.DeviceID, event.Severity)

		var action domain.PolicyAction
		if a.toggles.Enabled(policy.ToggleOrchestrator) {
			decision, err := a.orch.Decide(ctx, event.DeviceID, &domain.ThreatRecord{
				DeviceID:   event.DeviceID,
				EventType:  string(event.Type),
				Severity:   event.Severity,
				Detail:     fmt.Sprintf("anomaly score %d", event.Score),
				Timestamp:  event.Timestamp,
				ReportedBy: "anomaly_detector",
			})
			if err != nil {
				slog.Warn("orchestrator ruling failed", "device_id", event.DeviceID, "error", err)
			} else {
				action = decision.Action
			}
		}

		mac := ""
		if device, err := a.identity.GetDevice(ctx, event.DeviceID); err == nil {
			mac = device.MAC
		}
		message := fmt.Sprintf("behavioral anomaly %s, score %d", event.Type, event.Score)
		a.alerts.Add(event.DeviceID, mac, "", string(event.Type), message, event.Severity, action)
	}
}

// markActed returns true the first time a key is seen; entries expire
// after ten minutes so the set stays bounded.
func (a *Application) markActed(key string) bool {
	const ttl = 10 * time.Minute
	now := time.Now()
	a.actedMu.Lock()
	defer a.actedMu.Unlock()
	for k, t := range a.acted {
		if now.Sub(t) > ttl {
			delete(a.acted, k)
		}
	}
	if _, seen := a.acted[key]; seen {
		return false
	}
	a.acted[key] = now
	return true
}

func (a *Application) policySweep(ctx context.Context) {
	a.adapter.SweepOnce(ctx, a.scorer.Scores())
}

func (a *Application) honeypotIngest(ctx context.Context) {
	since := a.honeypotSince
	records, err := a.honeypot.Events(ctx, since)
	if err != nil {
		slog.Warn("honeypot poll failed", "error", err)
		return
	}
	for _, rec := range records {
		if rec.Timestamp.After(a.honeypotSince) {
			a.honeypotSince = rec.Timestamp
		}

		device, err := a.identity.GetDeviceByIP(ctx, rec.SourceIP)
		if err != nil {
			a.alerts.Add("", "", rec.SourceIP, rec.EventType, rec.Detail, rec.Severity, "")
			continue
		}

		a.scorer.RecordSecurityAlert(device.DeviceID, rec.Severity)
		var action domain.PolicyAction
		if a.toggles.Enabled(policy.ToggleOrchestrator) {
			rec.DeviceID = device.DeviceID
			decision, err := a.orch.Decide(ctx, device.DeviceID, rec)
			if err != nil {
				slog.Warn("orchestrator ruling failed", "device_id", device.DeviceID, "error", err)
			} else {
				action = decision.Action
			}
		}
		a.alerts.Add(device.DeviceID, device.MAC, rec.SourceIP, rec.EventType, rec.Detail, rec.Severity, action)
	}
}

func (a *Application) activityUpdate(ctx context.Context) {
	counts, err := a.honeypot.ActivityBySource(ctx)
	if err != nil {
		slog.Warn("honeypot activity refresh failed", "error", err)
		return
	}
	a.alerts.UpdateActivity(counts)
}
