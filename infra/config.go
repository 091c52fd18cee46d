package infra

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"bitbucket.org/novatechnologies/barfeed/infra/logger"
)

var ErrMissingBirdeyeAPIKey = errors.New("BIRDEYE_API_KEY is required")

type BirdeyeConfig struct {
	APIKey            string        `envconfig:"BIRDEYE_API_KEY"`
	BaseURL           string        `envconfig:"BIRDEYE_BASE_URL" default:"https://public-api.birdeye.so"`
	WSURL             string        `envconfig:"BIRDEYE_WS_URL" default:"wss://public-api.birdeye.so/socket/solana"`
	Chain             string        `envconfig:"BIRDEYE_CHAIN" default:"solana"`
	Currency          string        `envconfig:"BIRDEYE_CURRENCY" default:"pair"`
	Timeout           time.Duration `envconfig:"BIRDEYE_TIMEOUT" default:"10s"`
	RequestsPerSecond int           `envconfig:"BIRDEYE_RPS" default:"10"`
}

// Validate is called by the commands that talk to Birdeye.
func (c BirdeyeConfig) Validate() error {
	if c.APIKey == "" {
		return ErrMissingBirdeyeAPIKey
	}

	return nil
}

type HttpConfig struct {
	Port int `envconfig:"HTTP_PORT" default:"8080"`
}

type CentrifugeConfig struct {
	Host        string        `envconfig:"CENTRIFUGE_HOST"`
	Token       string        `envconfig:"CENTRIFUGE_TOKEN"`
	TokenSecret string        `envconfig:"CENTRIFUGE_TOKEN_SECRET"`
	TokenTTL    time.Duration `envconfig:"CENTRIFUGE_TOKEN_TTL" default:"1h"`
	BatchSize   int           `envconfig:"CENTRIFUGE_BATCH_SIZE" default:"64"`
	BatchWait   time.Duration `envconfig:"CENTRIFUGE_BATCH_WAIT" default:"250ms"`
}

func (c CentrifugeConfig) Enabled() bool {
	return c.Host != ""
}

type MongoDbConfig struct {
	ConnectionUrl     string `envconfig:"MONGODB_URL"`
	DatabaseName      string `envconfig:"MONGODB_NAME" default:"barfeed"`
	BarCollectionName string `envconfig:"MONGODB_BAR_COLLECTION_NAME" default:"bars"`
}

func (c MongoDbConfig) Enabled() bool {
	return c.ConnectionUrl != ""
}

type FeedConfig struct {
	// Symbols maps a chart symbol name to its pair address,
	// e.g. FEED_SYMBOLS="SOL_USDC:8sLbNZ...,BONK_SOL:Hs97...".
	Symbols  map[string]string `envconfig:"FEED_SYMBOLS"`
	Exchange string            `envconfig:"FEED_EXCHANGE" default:"Birdeye"`
	Timezone string            `envconfig:"FEED_TIMEZONE" default:"Etc/UTC"`
}

// Location returns the time zone used for day and longer bar boundaries.
func (c FeedConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "can't load timezone %s", c.Timezone)
	}

	return loc, nil
}

type Config struct {
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
	BirdeyeConfig    BirdeyeConfig
	HttpConfig       HttpConfig
	CentrifugeConfig CentrifugeConfig
	MongoDbConfig    MongoDbConfig
	FeedConfig       FeedConfig
}

// SetConfig loads the optional .env file at configPath and then reads the
// environment.
func SetConfig(configPath string) (Config, error) {
	if err := godotenv.Load(configPath); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrapf(err, "can't load %s", configPath)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to load configuration")
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return Config{}, errors.Wrapf(err, "bad LOG_LEVEL %q", cfg.LogLevel)
	}

	logger.DefaultLogger.
		WithField("birdeye", cfg.BirdeyeConfig.BaseURL).
		WithField("symbols", len(cfg.FeedConfig.Symbols)).
		WithField("centrifuge", cfg.CentrifugeConfig.Enabled()).
		WithField("mongo", cfg.MongoDbConfig.Enabled()).
		Infof("configuration loaded")

	return cfg, nil
}

func GetContext() context.Context {
	return context.Background()
}
