package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/flagx"
)

var ownFlags = []string{"-a", "-i", "-d", "-l", "-r", "-o", "-listen", "-concurrency", "-bypass", "-precache"}

// parseFlags populates Config fields from command-line flags. os.Args is
// filtered to the flags listed in the package documentation so cobra
// subcommands and other components can share the command line. Interval
// flags are whole seconds.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], ownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database file")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "log file")
	reconcileInterval := fs.Int("r", int(cfg.ReconcileInterval.Seconds()), "reconcile interval (in seconds)")
	fs.StringVar(&cfg.OriginURL, "o", cfg.OriginURL, "origin fronted by the routing layer")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "routing layer listen address")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "entities reconciled in parallel")

	bypass := flagx.StringList(cfg.BypassPatterns)
	fs.Var(&bypass, "bypass", "comma separated globs served without cache")
	precache := flagx.StringList(cfg.PrecacheAssets)
	fs.Var(&precache, "precache", "comma separated paths fetched on activation")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.ReconcileInterval = time.Duration(*reconcileInterval) * time.Second
	cfg.BypassPatterns = bypass
	cfg.PrecacheAssets = precache
}
