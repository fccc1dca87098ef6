package syslog

import "flag"

// Config controls both syslog listeners, which share a max message size.
type Config struct {
	UDPListenAddr  string `yaml:"udp_listen_addr"`
	TCPListenAddr  string `yaml:"tcp_listen_addr"`
	MaxMessageSize int    `yaml:"max_message_size"`
}

func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.UDPListenAddr, prefix+"udp-listen-addr", ":514", "Address to listen on for RFC3164/RFC5424 syslog over UDP.")
	f.StringVar(&c.TCPListenAddr, prefix+"tcp-listen-addr", ":601", "Address to listen on for syslog over TCP (RFC6587 octet-counted or newline-framed).")
	f.IntVar(&c.MaxMessageSize, prefix+"max-message-size", 65536, "Largest single syslog message accepted on either listener.")
}
