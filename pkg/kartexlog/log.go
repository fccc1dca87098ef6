// Package kartexlog provides the process-wide structured logger, built on
// go-kit/log the same way cmd/tempo/main.go wires pkg/util/log.
package kartexlog

import (
	"flag"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Config controls logger construction; registered the way the teacher's
// Config types register their own flags.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.Level, prefix+"log.level", "info", "Only log messages with the given severity or above. Valid levels: [debug, info, warn, error]")
	f.StringVar(&c.Format, prefix+"log.format", "logfmt", "Output log messages in the given format. Valid formats: [logfmt, json]")
}

// Logger is the process-wide logger, initialized by InitLogger. Components
// that are constructed before InitLogger runs (tests, mostly) fall back to
// a logfmt logger writing to stderr at info level.
var Logger = newLogger(Config{Level: "info", Format: "logfmt"})

// InitLogger builds Logger from cfg and installs it as the package-global
// logger, mirroring cmd/tempo/main.go's log.InitLogger(&config.Server) call.
func InitLogger(cfg *Config) {
	Logger = newLogger(*cfg)
}

func newLogger(cfg Config) log.Logger {
	var logger log.Logger
	if strings.EqualFold(cfg.Format, "json") {
		logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
	} else {
		logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	}
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	var lvl level.Option
	switch strings.ToLower(cfg.Level) {
	case "debug":
		lvl = level.AllowDebug()
	case "warn":
		lvl = level.AllowWarn()
	case "error":
		lvl = level.AllowError()
	default:
		lvl = level.AllowInfo()
	}
	return level.NewFilter(logger, lvl)
}
