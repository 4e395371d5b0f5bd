package config

import "github.com/spf13/pflag"

// Flags are the command-line overrides. Only flags the user actually set
// replace loaded values.
type Flags struct {
	ConfigPath string
	Host       string
	Port       int
	StaticDir  string
	LogLevel   string
	Console    bool
	AuditDB    string
}

func (f *Flags) AddFlags(fs *pflag.FlagSet) *Flags {
	d := DefaultConfig()
	fs.StringVarP(&f.ConfigPath, "config", "c", "", "Path to a YAML, JSON or TOML config file")
	fs.StringVar(&f.Host, "host", d.HTTP.Host, "HTTP listen host")
	fs.IntVarP(&f.Port, "port", "p", d.HTTP.Port, "HTTP listen port")
	fs.StringVar(&f.StaticDir, "static", "", "Directory of the built web client")
	fs.StringVar(&f.LogLevel, "log-level", d.Logging.Level, "Log level: debug, info, warn, error")
	fs.BoolVar(&f.Console, "console", false, "Human-readable log output")
	fs.StringVar(&f.AuditDB, "audit-db", d.Audit.Path, "SQLite admission audit database")
	return f
}

// Apply copies every changed flag into cfg.
func (f *Flags) Apply(fs *pflag.FlagSet, cfg *Config) {
	if fs.Changed("host") {
		cfg.HTTP.Host = f.Host
	}
	if fs.Changed("port") {
		cfg.HTTP.Port = f.Port
	}
	if fs.Changed("static") {
		cfg.HTTP.StaticDir = f.StaticDir
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = f.LogLevel
	}
	if fs.Changed("console") {
		cfg.Logging.Console = f.Console
	}
	if fs.Changed("audit-db") {
		cfg.Audit.Path = f.AuditDB
	}
}
