package otlp

import "flag"

// Config controls the OTLP gRPC and HTTP/JSON collector listeners.
type Config struct {
	GRPCListenAddr string `yaml:"grpc_listen_addr"`
	HTTPListenAddr string `yaml:"http_listen_addr"`
}

func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.GRPCListenAddr, prefix+"grpc-listen-addr", ":4317", "Address to listen on for OTLP gRPC trace and log exports.")
	f.StringVar(&c.HTTPListenAddr, prefix+"http-listen-addr", ":4318", "Address to listen on for OTLP HTTP/JSON trace and log exports.")
}
