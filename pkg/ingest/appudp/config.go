package appudp

import "flag"

// Config controls the authenticated application UDP listener.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	Secret     string `yaml:"secret"`
}

func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.ListenAddr, prefix+"listen-addr", ":9999", "Address to listen on for authenticated application UDP log packets.")
	f.StringVar(&c.Secret, prefix+"secret", "", "Shared HMAC-SHA256 secret used to validate incoming packets.")
}
