package gelf

import "flag"

// Config controls the GELF/UDP listener.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
}

func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.ListenAddr, prefix+"listen-addr", ":12201", "Address to listen on for GELF/UDP datagrams.")
}
