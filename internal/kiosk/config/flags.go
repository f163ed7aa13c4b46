package config

import (
	"flag"
	"os"
	"time"

	"github.com/jcastellanos/comedor-kiosk/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the ticket API (default from Config)
//	-d string   path of the local database file
//	-e string   CSV export directory
//	-s int      sync throttle interval in minutes
//	-i int      online check interval in seconds
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-e", "-s", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "base URL of the ticket API")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "path of the local database file")
	fs.StringVar(&cfg.ExportDir, "e", cfg.ExportDir, "CSV export directory")
	syncInterval := fs.Int("s", int(cfg.SyncInterval.Minutes()), "sync throttle interval (in minutes)")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Minute
	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
