package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ztlan/warden/internal/adapters/web/middleware"
)

// SetupRoutes wires every endpoint. Device-facing paths stay open, the
// operator API sits behind token auth, and admission decisions further
// require an approver role.
func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	// Device-facing endpoints. Devices authenticate with their own
	// session tokens inside the payload, not with operator auth.
	r.HandleFunc("/onboard", s.Device.HandleOnboard).Methods(http.MethodPost)
	r.HandleFunc("/finalize_onboarding", s.Device.HandleFinalizeOnboarding).Methods(http.MethodPost)
	r.HandleFunc("/get_profiling_status", s.Device.HandleProfilingStatus).Methods(http.MethodGet)
	r.HandleFunc("/get_token", s.Session.HandleGetToken).Methods(http.MethodPost)
	r.HandleFunc("/auth", s.Session.HandleAuth).Methods(http.MethodPost)
	r.HandleFunc("/data", s.Session.HandleData).Methods(http.MethodPost)
	r.HandleFunc("/verify_certificate", s.Device.HandleVerifyCertificate).Methods(http.MethodPost)

	// Operator login, rate limited against brute force.
	loginLimiter := middleware.NewRateLimiter(5, 1*time.Minute)
	r.Handle("/api/login",
		middleware.RateLimitMiddleware(loginLimiter)(http.HandlerFunc(s.AuthHandler.HandleLogin))).Methods(http.MethodPost)
	r.HandleFunc("/api/logout", s.AuthHandler.HandleLogout).Methods(http.MethodPost)

	auth := middleware.AuthMiddleware(s.AuthHandler.Auth)
	protect := func(h http.HandlerFunc) http.Handler {
		return auth(h)
	}
	protectApprover := func(h http.HandlerFunc) http.Handler {
		return auth(middleware.RequireApprover(h))
	}

	r.Handle("/api/me", protect(s.AuthHandler.HandleMe)).Methods(http.MethodGet)
	r.Handle("/ws", protect(s.WSManager.HandleWebSocket))

	// Admission queue.
	r.Handle("/api/pending_devices", protect(s.Admission.HandlePendingDevices)).Methods(http.MethodGet)
	r.Handle("/api/approve_device", protectApprover(s.Admission.HandleApproveDevice)).Methods(http.MethodPost)
	r.Handle("/api/reject_device", protectApprover(s.Admission.HandleRejectDevice)).Methods(http.MethodPost)
	r.Handle("/api/device_history", protect(s.Admission.HandleDeviceHistory)).Methods(http.MethodGet)
	r.Handle("/api/failed_token_requests", protect(s.Admission.HandleFailedTokenRequests)).Methods(http.MethodGet)
	r.Handle("/api/authorize_device", protectApprover(s.Admission.HandleAuthorizeDevice)).Methods(http.MethodPost)
	r.Handle("/api/revoke_device", protectApprover(s.Device.HandleRevoke)).Methods(http.MethodPost)

	// Topology and dashboards.
	r.Handle("/get_topology", protect(s.Device.HandleTopology)).Methods(http.MethodGet)
	r.Handle("/get_topology_with_mac", protect(s.Device.HandleTopologyWithMAC)).Methods(http.MethodGet)
	r.Handle("/get_health_metrics", protect(s.Observability.HandleHealthMetrics)).Methods(http.MethodGet)
	r.Handle("/get_data", protect(s.Observability.HandleGetData)).Methods(http.MethodGet)
	r.Handle("/get_policies", protect(s.Observability.HandleGetPolicies)).Methods(http.MethodGet)
	r.Handle("/get_policy_logs", protect(s.Observability.HandlePolicyLogs)).Methods(http.MethodGet)
	r.Handle("/clear_policy_logs", protect(s.Observability.HandleClearPolicyLogs)).Methods(http.MethodPost)
	r.Handle("/toggle_policy/{name}", protectApprover(s.Observability.HandleTogglePolicy)).Methods(http.MethodPost)
	r.Handle("/get_security_alerts", protect(s.Observability.HandleSecurityAlerts)).Methods(http.MethodGet)
	r.Handle("/get_sdn_metrics", protect(s.Observability.HandleSDNMetrics)).Methods(http.MethodGet)

	// Alert management.
	r.Handle("/api/alerts/device/{id}", protect(s.Observability.HandleDeviceAlerts)).Methods(http.MethodGet)
	r.Handle("/api/alerts/acknowledge/{id}", protect(s.Observability.HandleAcknowledgeAlert)).Methods(http.MethodPost)

	// Reports.
	r.Handle("/api/reports/security", protect(s.Report.HandleSecurityReport)).Methods(http.MethodGet)

	r.Handle("/metrics", protect(promhttp.Handler().ServeHTTP))

	return r
}
