package config

import (
	"flag"
	"os"
	"strings"
	"time"
)

// parseFlags populates selected Config fields from command-line flags:
//
//	-s string   base URL of the server API
//	-d string   path to the local database file
//	-i int      online check interval in seconds
//	-w int      keep-warm interval in seconds
//	-f int      bootstrap fan-out
//
// Only the flags listed here are consumed, so other components can define
// their own without collisions.
func parseFlags(cfg *Config) {
	args := filterArgs(os.Args[1:], []string{"-s", "-d", "-i", "-w", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.StringVar(&cfg.ServerBaseURL, "s", cfg.ServerBaseURL, "server base url")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	checkSecs := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (seconds)")
	warmSecs := fs.Int("w", int(cfg.KeepWarmInterval.Seconds()), "keep-warm interval (seconds)")
	fs.IntVar(&cfg.BootstrapFanout, "f", cfg.BootstrapFanout, "bootstrap fan-out")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
	cfg.OnlineCheckInterval = time.Duration(*checkSecs) * time.Second
	cfg.KeepWarmInterval = time.Duration(*warmSecs) * time.Second
}

// jsonConfigPath extracts the -c/-config flag without disturbing the rest
// of the command line.
func jsonConfigPath() string {
	var path string
	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(filterArgs(os.Args[1:], []string{"-c", "-config"}))
	return path
}

// filterArgs keeps only the allowed flags (and their values), in both the
// "-f value" and "-f=value" spellings.
func filterArgs(args, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}
		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}
	return filtered
}
