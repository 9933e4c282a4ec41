// Package config loads the server configuration from LABELREG_*
// environment variables and the genesis balances from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"labelreg/domain/ledger"
	"labelreg/domain/registry"
	"labelreg/infra/kafka"
)

const EnvPrefix = "LABELREG_"

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":50051"`
	DataDir    string `env:"DATA_DIR" envDefault:"./data"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	MinLength        uint32 `env:"MIN_LENGTH" envDefault:"3"`
	MaxLength        uint32 `env:"MAX_LENGTH" envDefault:"16"`
	ReservationFee   uint64 `env:"RESERVATION_FEE" envDefault:"10"`
	ForceClearPolicy string `env:"FORCE_CLEAR_POLICY" envDefault:"unreserve"`
	// SlashDestination is "burn" or the account that receives slashed deposits.
	SlashDestination string   `env:"SLASH_DESTINATION" envDefault:"burn"`
	Authorities      []string `env:"AUTHORITIES" envSeparator:"," envDefault:"root"`
	GenesisFile      string   `env:"GENESIS_FILE"`

	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	KafkaDriver       string        `env:"KAFKA_DRIVER" envDefault:"kafka-go"`
	KafkaBrokers      []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic        string        `env:"KAFKA_TOPIC" envDefault:"labelreg.events"`
	KafkaAcks         string        `env:"KAFKA_ACKS" envDefault:"all"`
	KafkaBatchTimeout time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"10ms"`
	BroadcastInterval time.Duration `env:"BROADCAST_INTERVAL" envDefault:"250ms"`

	WALSegmentSize   int64         `env:"WAL_SEGMENT_SIZE" envDefault:"2097152"`
	WALSync          bool          `env:"WAL_SYNC" envDefault:"true"`
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"1m"`

	TraceStdout bool `env:"TRACE_STDOUT"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return LoadFrom(nil)
}

// LoadFrom parses environ instead of the process environment when it
// is non-nil. Keys carry the LABELREG_ prefix.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if _, err := cfg.Registry(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Registry returns the validated registry constants.
func (c Config) Registry() (registry.Config, error) {
	policy, err := registry.ParseForceClearPolicy(c.ForceClearPolicy)
	if err != nil {
		return registry.Config{}, err
	}
	rc := registry.Config{
		MinLength:      c.MinLength,
		MaxLength:      c.MaxLength,
		ReservationFee: ledger.Balance(c.ReservationFee),
		ForceClear:     policy,
	}
	if c.SlashDestination != "burn" {
		rc.SlashTo = ledger.AccountID(c.SlashDestination)
	}
	if err := rc.Validate(); err != nil {
		return registry.Config{}, err
	}
	return rc, nil
}

func (c Config) AuthorityIDs() []ledger.AccountID {
	out := make([]ledger.AccountID, 0, len(c.Authorities))
	for _, a := range c.Authorities {
		out = append(out, ledger.AccountID(a))
	}
	return out
}

// Kafka returns the publisher settings.
func (c Config) Kafka() kafka.Config {
	return kafka.Config{
		Driver:       c.KafkaDriver,
		Brokers:      c.KafkaBrokers,
		Topic:        c.KafkaTopic,
		Acks:         c.KafkaAcks,
		BatchTimeout: c.KafkaBatchTimeout,
	}
}

func (c Config) JournalDir() string  { return filepath.Join(c.DataDir, "journal") }
func (c Config) OutboxDir() string   { return filepath.Join(c.DataDir, "outbox") }
func (c Config) SnapshotDir() string { return filepath.Join(c.DataDir, "snapshot") }

// Genesis lists the balances endowed when a store is first created.
type Genesis struct {
	Balances map[string]uint64 `yaml:"balances"`
}

// LoadGenesis reads path. An empty path yields an empty genesis.
func LoadGenesis(path string) (Genesis, error) {
	if path == "" {
		return Genesis{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, fmt.Errorf("read genesis: %w", err)
	}
	var g Genesis
	if err := yaml.Unmarshal(data, &g); err != nil {
		return Genesis{}, fmt.Errorf("parse genesis: %w", err)
	}
	return g, nil
}
