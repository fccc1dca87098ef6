package store

import "flag"

// Backend names the Gateway implementation Config selects, mirroring the
// teacher's backend.Local/backend.S3/backend.GCS/backend.Azure selector.
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

// MongoConfig configures the mongostore backend.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// Config selects and configures the Gateway backend. The inmemstore and
// mongostore constructors live in their own packages to avoid an import
// cycle with this one; the selection switch lives in the caller that can
// see both (cmd/kartex/app).
type Config struct {
	Backend string      `yaml:"backend"`
	Mongo   MongoConfig `yaml:"mongo"`
}

func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.Backend, prefix+"backend", BackendMemory, "Storage backend to use: memory or mongo.")
	f.StringVar(&c.Mongo.URI, prefix+"mongo.uri", "mongodb://localhost:27017", "MongoDB connection URI, used when backend is mongo.")
	f.StringVar(&c.Mongo.Database, prefix+"mongo.database", "kartex", "MongoDB database name, used when backend is mongo.")
}
