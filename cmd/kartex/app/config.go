// Package app wires every kartex component — storage, the four ingestion
// listeners, the alert engine, and the REST/WebSocket API — into a single
// supervised process, the way cmd/tempo/app wires tempo's distributor,
// ingester, querier, and compactor graph.
package app

import (
	"flag"
	"fmt"

	"github.com/kartexhq/kartex/pkg/alert"
	"github.com/kartexhq/kartex/pkg/api"
	"github.com/kartexhq/kartex/pkg/batch"
	"github.com/kartexhq/kartex/pkg/ingest/appudp"
	"github.com/kartexhq/kartex/pkg/ingest/gelf"
	"github.com/kartexhq/kartex/pkg/ingest/otlp"
	"github.com/kartexhq/kartex/pkg/ingest/syslog"
	"github.com/kartexhq/kartex/pkg/kartexauth"
	"github.com/kartexhq/kartex/pkg/kartexlog"
	"github.com/kartexhq/kartex/pkg/store"
)

// Config is the root config for App, composing every component's own Config
// the same way cmd/tempo/app.Config composes the per-module configs for
// distributor, ingester, querier, and the rest.
type Config struct {
	Log   kartexlog.Config  `yaml:"log"`
	Store store.Config      `yaml:"store"`
	Auth  kartexauth.Config `yaml:"auth"`
	API   api.Config        `yaml:"api"`
	Alert alert.Config      `yaml:"alert"`

	LogBatch  batch.Config `yaml:"log_batch"`
	SpanBatch batch.Config `yaml:"span_batch"`

	AppUDP appudp.Config `yaml:"appudp"`
	GELF   gelf.Config   `yaml:"gelf"`
	Syslog syslog.Config `yaml:"syslog"`
	OTLP   otlp.Config   `yaml:"otlp"`
}

// NewDefaultConfig returns a Config with every flag default applied and
// nothing read from a config file or the command line.
func NewDefaultConfig() *Config {
	c := &Config{}
	c.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("", flag.PanicOnError))
	return c
}

// RegisterFlagsAndApplyDefaults registers every component's flags under a
// component-specific sub-prefix of prefix.
//
// kartexlog.Config bakes "log." into its own flag names, so it is
// registered at the bare prefix rather than prefix+"log." — otherwise the
// level flag would come out "log.log.level". LogBatch and SpanBatch both
// wrap the same generic batch.Config, whose flag names carry no identity
// of their own, so each needs its own distinct sub-prefix to coexist on
// one FlagSet.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	c.Log.RegisterFlagsAndApplyDefaults(prefix, f)
	c.Store.RegisterFlagsAndApplyDefaults(prefix+"store.", f)
	c.Auth.RegisterFlagsAndApplyDefaults(prefix+"auth.", f)
	c.API.RegisterFlagsAndApplyDefaults(prefix+"api.", f)
	c.Alert.RegisterFlagsAndApplyDefaults(prefix+"alert.", f)
	c.LogBatch.RegisterFlagsAndApplyDefaults(prefix+"logs-batch.", f)
	c.SpanBatch.RegisterFlagsAndApplyDefaults(prefix+"spans-batch.", f)
	c.AppUDP.RegisterFlagsAndApplyDefaults(prefix+"appudp.", f)
	c.GELF.RegisterFlagsAndApplyDefaults(prefix+"gelf.", f)
	c.Syslog.RegisterFlagsAndApplyDefaults(prefix+"syslog.", f)
	c.OTLP.RegisterFlagsAndApplyDefaults(prefix+"otlp.", f)
}

// ConfigWarning bundles a message and optional explanation, matching the
// shape of the teacher's own CheckConfig warnings.
type ConfigWarning struct {
	Message string
	Explain string
}

var (
	warnInvalidBackend = ConfigWarning{
		Message: "store.backend is not a recognized value",
		Explain: "falling back to the in-memory store; set store.backend to memory or mongo",
	}
	warnNoAuthConfigured = ConfigWarning{
		Message: "no auth.api_keys or auth.users configured",
		Explain: "every request to the protected API surface will be rejected",
	}
	warnJWTSecretEmpty = ConfigWarning{
		Message: "auth.users is set but auth.jwt_secret is empty",
		Explain: "login will sign tokens with an empty key; set auth.jwt_secret before exposing this outside a dev environment",
	}
)

// CheckConfig checks for suspect configurations, mirroring the shape (not
// the specific checks) of the teacher's own App.CheckConfig.
func (c *Config) CheckConfig() []ConfigWarning {
	var warnings []ConfigWarning

	if c.Store.Backend != store.BackendMemory && c.Store.Backend != store.BackendMongo {
		w := warnInvalidBackend
		w.Message = fmt.Sprintf("%s: %q", w.Message, c.Store.Backend)
		warnings = append(warnings, w)
	}
	if len(c.Auth.APIKeys) == 0 && len(c.Auth.Users) == 0 {
		warnings = append(warnings, warnNoAuthConfigured)
	}
	if c.Auth.JWTSecret == "" && len(c.Auth.Users) > 0 {
		warnings = append(warnings, warnJWTSecretEmpty)
	}

	return warnings
}
