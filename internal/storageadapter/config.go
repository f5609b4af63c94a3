// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package storageadapter

import (
	"os"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/juju/environschema.v1"
	"gopkg.in/yaml.v3"

	"github.com/juju/gridstore/core/filekey"
	"github.com/juju/gridstore/internal/mongo"
)

const (
	MongoURLKey        = "mongo-url"
	ChunkSizeKey       = "chunk-size"
	PerformanceModeKey = "performance-mode"
	AutoReconnectKey   = "auto-reconnect"
	DialTimeoutKey     = "dial-timeout"
	PoolLimitKey       = "pool-limit"
	PingIntervalKey    = "ping-interval"
	PingAttemptsKey    = "ping-attempts"
	DeriveNativeIDsKey = "derive-native-ids"
)

const (
	// MongoURLEnvKey names the environment variable holding the database
	// address used when none is configured.
	MongoURLEnvKey = "MONGO_URL"

	// DefaultPingInterval is the time between liveness pings.
	DefaultPingInterval = 30 * time.Second

	// DefaultPingAttempts is the number of pings tried before the
	// connection is considered lost.
	DefaultPingAttempts = 3

	// sharedNamespace prefixes the buckets of adapters using the shared
	// database from the environment.
	sharedNamespace = "cfs_gridfs"
)

var configSchema = environschema.Fields{
	MongoURLKey: {
		Description: "The mongodb:// address of the database holding the files.",
		Type:        environschema.Tstring,
	},
	ChunkSizeKey: {
		Description: "The size in bytes of the chunks files are split into.",
		Type:        environschema.Tint,
	},
	PerformanceModeKey: {
		Description: "Allow reads from secondaries until the session writes.",
		Type:        environschema.Tbool,
	},
	AutoReconnectKey: {
		Description: "Keep retrying unreachable servers instead of failing.",
		Type:        environschema.Tbool,
	},
	DialTimeoutKey: {
		Description: "How long to wait for a reachable server, e.g. 30s.",
		Type:        environschema.Tstring,
	},
	PoolLimitKey: {
		Description: "The maximum number of sockets per server, 0 for the driver default.",
		Type:        environschema.Tint,
	},
	PingIntervalKey: {
		Description: "The time between liveness pings, e.g. 30s.",
		Type:        environschema.Tstring,
	},
	PingAttemptsKey: {
		Description: "The number of failed pings before the connection is lost.",
		Type:        environschema.Tint,
	},
	DeriveNativeIDsKey: {
		Description: "Compute native ids from external file ids when none is stored.",
		Type:        environschema.Tbool,
	},
}

var configDefaults = schema.Defaults{
	MongoURLKey:        schema.Omit,
	ChunkSizeKey:       filekey.DefaultChunkSize,
	PerformanceModeKey: true,
	AutoReconnectKey:   true,
	DialTimeoutKey:     mongo.DefaultDialTimeout.String(),
	PoolLimitKey:       0,
	PingIntervalKey:    DefaultPingInterval.String(),
	PingAttemptsKey:    DefaultPingAttempts,
	DeriveNativeIDsKey: false,
}

// DialFunc connects to the database at addr.
type DialFunc func(addr string, opts mongo.DialOpts) (mongo.Session, error)

// Config holds the configuration of an Adapter.
type Config struct {
	// Name names the store. It is the last element of the namespace prefix.
	Name string

	// MongoURL is the database address. When empty the address is read
	// from the MONGO_URL environment variable, and buckets are placed
	// under the shared cfs_gridfs namespace.
	MongoURL string

	// ChunkSize is the chunk size of writes that do not choose their own.
	ChunkSize int

	PerformanceMode bool
	AutoReconnect   bool
	DialTimeout     time.Duration
	PoolLimit       int

	// PingInterval is the time between liveness pings of the connection.
	PingInterval time.Duration

	// PingAttempts is the number of consecutive failed pings after which
	// the connection is considered lost.
	PingAttempts int

	// DeriveNativeIDs makes FileKey compute the native id of files that
	// do not have one stored, from their external id.
	DeriveNativeIDs bool

	Clock  clock.Clock
	Dial   DialFunc
	GetEnv func(string) string

	// Metrics is optional.
	Metrics *Collector
}

// DefaultConfig returns the configuration of a store with the given name
// and every setting at its default.
func DefaultConfig(name string) Config {
	return Config{
		Name:            name,
		ChunkSize:       filekey.DefaultChunkSize,
		PerformanceMode: true,
		AutoReconnect:   true,
		DialTimeout:     mongo.DefaultDialTimeout,
		PingInterval:    DefaultPingInterval,
		PingAttempts:    DefaultPingAttempts,
		Clock:           clock.WallClock,
		Dial:            mongo.Dial,
		GetEnv:          os.Getenv,
	}
}

// Validate returns an error if the config cannot be used to start an
// Adapter.
func (config Config) Validate() error {
	if config.Name == "" {
		return errors.NotValidf("empty Name")
	}
	if config.ChunkSize <= 0 {
		return errors.NotValidf("non-positive ChunkSize %d", config.ChunkSize)
	}
	if config.DialTimeout <= 0 {
		return errors.NotValidf("non-positive DialTimeout %v", config.DialTimeout)
	}
	if config.PoolLimit < 0 {
		return errors.NotValidf("negative PoolLimit %d", config.PoolLimit)
	}
	if config.PingInterval <= 0 {
		return errors.NotValidf("non-positive PingInterval %v", config.PingInterval)
	}
	if config.PingAttempts < 1 {
		return errors.NotValidf("PingAttempts %d", config.PingAttempts)
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Dial == nil {
		return errors.NotValidf("nil Dial")
	}
	if config.GetEnv == nil {
		return errors.NotValidf("nil GetEnv")
	}
	return nil
}

// NamespacePrefix returns the prefix of the bucket roots of the store.
func (config Config) NamespacePrefix() string {
	if config.MongoURL == "" {
		return sharedNamespace + "." + config.Name
	}
	return config.Name
}

func (config Config) address() (string, error) {
	if config.MongoURL != "" {
		return config.MongoURL, nil
	}
	if addr := config.GetEnv(MongoURLEnvKey); addr != "" {
		return addr, nil
	}
	return "", errors.NotValidf("no %s configured and %s not set", MongoURLKey, MongoURLEnvKey)
}

func (config Config) dialOpts() mongo.DialOpts {
	return mongo.DialOpts{
		Timeout:         config.DialTimeout,
		PerformanceMode: config.PerformanceMode,
		AutoReconnect:   config.AutoReconnect,
		PoolLimit:       config.PoolLimit,
	}
}

// ConfigSchema returns the fields accepted by NewConfigFromAttrs.
func ConfigSchema() environschema.Fields {
	return configSchema
}

// NewConfigFromAttrs returns the configuration of the named store from
// attributes keyed by the field names of ConfigSchema. Missing attributes
// take their default value.
func NewConfigFromAttrs(name string, attrs map[string]interface{}) (Config, error) {
	fields, _, err := configSchema.ValidationSchema()
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	coerced, err := schema.StrictFieldMap(fields, configDefaults).Coerce(attrs, nil)
	if err != nil {
		return Config{}, errors.NewNotValid(err, "gridfs store config")
	}
	validAttrs := coerced.(map[string]interface{})

	config := DefaultConfig(name)
	config.MongoURL, _ = validAttrs[MongoURLKey].(string)
	config.ChunkSize, _ = validAttrs[ChunkSizeKey].(int)
	config.PerformanceMode, _ = validAttrs[PerformanceModeKey].(bool)
	config.AutoReconnect, _ = validAttrs[AutoReconnectKey].(bool)
	config.PoolLimit, _ = validAttrs[PoolLimitKey].(int)
	config.PingAttempts, _ = validAttrs[PingAttemptsKey].(int)
	config.DeriveNativeIDs, _ = validAttrs[DeriveNativeIDsKey].(bool)

	if config.DialTimeout, err = parseDuration(validAttrs, DialTimeoutKey); err != nil {
		return Config{}, errors.Trace(err)
	}
	if config.PingInterval, err = parseDuration(validAttrs, PingIntervalKey); err != nil {
		return Config{}, errors.Trace(err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, errors.Trace(err)
	}
	return config, nil
}

func parseDuration(attrs map[string]interface{}, key string) (time.Duration, error) {
	value, _ := attrs[key].(string)
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.NotValidf("%s %q", key, value)
	}
	return d, nil
}

// ReadConfigFile reads the configuration of the named store from a YAML
// file of attributes.
func ReadConfigFile(name, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	var attrs map[string]interface{}
	if err := yaml.Unmarshal(data, &attrs); err != nil {
		return Config{}, errors.Annotatef(err, "parsing %s", path)
	}
	if attrs == nil {
		attrs = make(map[string]interface{})
	}
	config, err := NewConfigFromAttrs(name, attrs)
	return config, errors.Annotatef(err, "reading %s", path)
}
