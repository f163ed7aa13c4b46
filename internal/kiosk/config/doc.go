// Package config loads runtime configuration for the kiosk.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the ticket API
//	-d string   path of the local database file
//	-e string   CSV export directory
//	-s int      sync throttle interval (minutes)
//	-i int      online status check interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "5m" or integer nanoseconds:
//
//	{
//	  "api_base_url": "http://kiosk.example/api",
//	  "db_path": "/data/kiosk.db",
//	  "export_dir": "/media/usb/exports",
//	  "sync_interval": "5m",
//	  "online_check_interval": "3s"
//	}
//
// Primary API
//
//   - type Config                     — holds endpoint, paths, intervals and page sizes
//   - func LoadConfig() *Config       — builds Config by applying defaults, JSON, then flags
//   - func (*Config) LoadDefaults()   — sets sensible defaults
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
