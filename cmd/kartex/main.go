package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/drone/envsubst"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/flagext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"gopkg.in/yaml.v2"

	"github.com/kartexhq/kartex/cmd/kartex/app"
	"github.com/kartexhq/kartex/cmd/kartex/build"
	"github.com/kartexhq/kartex/pkg/kartexlog"
)

const appName = "kartex"

// Version is set via build flag -ldflags -X main.Version
var (
	Version  string
	Branch   string
	Revision string
)

func init() {
	version.Version = Version
	version.Branch = Branch
	version.Revision = Revision
	prometheus.MustRegister(version.NewCollector(appName))
}

func main() {
	printVersion := flag.Bool("version", false, "Print this build's version information")

	config, configVerify, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed parsing config: %v\n", err)
		os.Exit(1)
	}
	if *printVersion {
		fmt.Println(version.Print(appName))
		os.Exit(0)
	}

	kartexlog.InitLogger(&config.Log)
	logger := kartexlog.Logger

	isValid := configIsValid(logger, config)
	if configVerify {
		if !isValid {
			os.Exit(1)
		}
		os.Exit(0)
	}

	a, err := app.New(*config, logger, prometheus.DefaultRegisterer)
	if err != nil {
		level.Error(logger).Log("msg", "error initialising kartex", "err", err)
		os.Exit(1)
	}

	level.Info(logger).Log("msg", "starting kartex", "version", version.Info(), "build", build.GetVersion())
	build.WriteStartupStatus(os.Stdout, build.GetVersion(), []build.Listener{
		{Name: "api", Addr: config.API.ListenAddr},
		{Name: "appudp", Addr: config.AppUDP.ListenAddr},
		{Name: "gelf", Addr: config.GELF.ListenAddr},
		{Name: "syslog/udp", Addr: config.Syslog.UDPListenAddr},
		{Name: "syslog/tcp", Addr: config.Syslog.TCPListenAddr},
		{Name: "otlp/grpc", Addr: config.OTLP.GRPCListenAddr},
		{Name: "otlp/http", Addr: config.OTLP.HTTPListenAddr},
	})

	if err := a.Run(); err != nil {
		level.Error(logger).Log("msg", "error running kartex", "err", err)
		os.Exit(1)
	}
}

func configIsValid(logger log.Logger, config *app.Config) bool {
	warnings := config.CheckConfig()
	if len(warnings) == 0 {
		return true
	}

	level.Warn(logger).Log("msg", "-- CONFIGURATION WARNINGS --")
	for _, w := range warnings {
		output := []interface{}{"msg", w.Message}
		if w.Explain != "" {
			output = append(output, "explain", w.Explain)
		}
		level.Warn(logger).Log(output...)
	}
	return false
}

func loadConfig() (*app.Config, bool, error) {
	const (
		configFileOption      = "config.file"
		configExpandEnvOption = "config.expand-env"
		configVerifyOption    = "config.verify"
	)

	var (
		configFile      string
		configExpandEnv bool
		configVerify    bool
	)

	args := os.Args[1:]
	config := &app.Config{}

	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configFile, configFileOption, "", "")
	fs.BoolVar(&configExpandEnv, configExpandEnvOption, false, "")
	fs.BoolVar(&configVerify, configVerifyOption, false, "")

	// Parsing stops at the first unrecognized flag, so walk the argument
	// list one token at a time until config.file/config.expand-env/
	// config.verify are found or the arguments run out.
	for len(args) > 0 {
		_ = fs.Parse(args)
		args = args[1:]
	}

	config.RegisterFlagsAndApplyDefaults("", flag.CommandLine)

	if configFile != "" {
		buff, err := os.ReadFile(configFile)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read configFile %s: %w", configFile, err)
		}

		if configExpandEnv {
			s, err := envsubst.EvalEnv(string(buff))
			if err != nil {
				return nil, false, fmt.Errorf("failed to expand env vars from configFile %s: %w", configFile, err)
			}
			buff = []byte(s)
		}

		if err := yaml.UnmarshalStrict(buff, config); err != nil {
			return nil, false, fmt.Errorf("failed to parse configFile %s: %w", configFile, err)
		}
	}

	flagext.IgnoredFlag(flag.CommandLine, configFileOption, "Configuration file to load")
	flagext.IgnoredFlag(flag.CommandLine, configExpandEnvOption, "Whether to expand environment variables in config file")
	flagext.IgnoredFlag(flag.CommandLine, configVerifyOption, "Verify configuration and exit")
	flag.Parse()

	return config, configVerify, nil
}
