package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds the runtime configuration. Flags override environment
// variables; environment variables override defaults.
type Config struct {
	Addr     string
	GRPCAddr string

	IdentityDBPath string
	PendingDBPath  string
	CertDir        string

	WifiInterface string
	HostapdLog    string
	HoneypotLog   string

	// DataPlaneMode selects the rule installer: "memory" programs the
	// in-process data plane, "none" accepts rules without enforcing.
	DataPlaneMode string

	AllowInsecureAutoAuth bool
	AdminPassword         string

	MaintStartHour int
	MaintEndHour   int

	ProfilingWindow     time.Duration
	AttestationInterval time.Duration
	SessionTTL          time.Duration

	EnableSniffer bool
}

// Load parses flags and environment into a Config.
func Load() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Addr, "addr", getEnv("WARDEN_ADDR", ":8443"), "HTTP listen address")
	flag.StringVar(&cfg.GRPCAddr, "grpc", getEnv("WARDEN_GRPC", ":9443"), "gRPC listen address (empty disables)")
	flag.StringVar(&cfg.IdentityDBPath, "db", getEnv("WARDEN_DB", "warden_identity.db"), "identity store path")
	flag.StringVar(&cfg.PendingDBPath, "pending-db", getEnv("WARDEN_PENDING_DB", "warden_pending.db"), "pending queue path")
	flag.StringVar(&cfg.CertDir, "cert-dir", getEnv("WARDEN_CERT_DIR", "certs"), "CA and device credential directory")
	flag.StringVar(&cfg.WifiInterface, "iface", getEnv("WIFI_INTERFACE", "wlan0"), "wireless interface to watch")
	flag.StringVar(&cfg.HostapdLog, "hostapd-log", getEnv("WARDEN_HOSTAPD_LOG", ""), "hostapd log to tail for associations")
	flag.StringVar(&cfg.HoneypotLog, "honeypot-log", getEnv("WARDEN_HONEYPOT_LOG", ""), "cowrie JSON log path")
	flag.StringVar(&cfg.DataPlaneMode, "dataplane", getEnv("WARDEN_DATAPLANE", "memory"), "rule installer backend (memory or none)")
	flag.BoolVar(&cfg.AllowInsecureAutoAuth, "insecure-auto-auth", getEnvBool("ALLOW_INSECURE_AUTO_AUTH", false), "auto-admit unknown MACs on token requests")
	flag.BoolVar(&cfg.EnableSniffer, "sniffer", getEnvBool("WARDEN_SNIFFER", false), "enable live ARP capture on the wireless interface")
	flag.IntVar(&cfg.MaintStartHour, "maint-start", getEnvInt("WARDEN_MAINT_START", 2), "maintenance window start hour (local)")
	flag.IntVar(&cfg.MaintEndHour, "maint-end", getEnvInt("WARDEN_MAINT_END", 3), "maintenance window end hour (local)")
	flag.Parse()

	cfg.AdminPassword = getEnv("WARDEN_ADMIN_PASSWORD", "")
	cfg.ProfilingWindow = getEnvDuration("WARDEN_PROFILING_WINDOW", 300*time.Second)
	cfg.AttestationInterval = getEnvDuration("WARDEN_ATTESTATION_INTERVAL", 300*time.Second)
	cfg.SessionTTL = getEnvDuration("WARDEN_SESSION_TTL", 300*time.Second)

	return cfg
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
