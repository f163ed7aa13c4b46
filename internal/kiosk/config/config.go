package config

import "time"

// Config holds runtime settings for the kiosk.
//
// Fields:
//   - APIBaseURL: built-in ticket API endpoint; the operator can still
//     override it at runtime, which is persisted separately.
//   - DBPath: path of the local sqlite database.
//   - ExportDir: primary directory for CSV backups.
//   - DataDir: app data directory, fallback for CSV backups.
//   - SyncInterval: throttle between non-forced sync runs.
//   - OnlineCheckInterval: how often the kiosk probes server reachability.
//   - TicketPageSize / UserPageSize: download page sizes.
type Config struct {
	APIBaseURL          string
	DBPath              string
	ExportDir           string
	DataDir             string
	SyncInterval        time.Duration
	OnlineCheckInterval time.Duration
	TicketPageSize      int
	UserPageSize        int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "https://tickets-api-production-bb7a.up.railway.app/api"
	c.DBPath = "comedor.db"
	c.ExportDir = "exports"
	c.DataDir = "."
	c.SyncInterval = 5 * time.Minute
	c.OnlineCheckInterval = 3 * time.Second
	c.TicketPageSize = 600
	c.UserPageSize = 300
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
