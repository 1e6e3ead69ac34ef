// Package config loads runtime settings from .env files and the environment.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Port      string
	GRPCPort  string
	GinMode   string
	LogLevel  string
	LogFormat string

	DBDriver    string
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBMaxConns  int

	RedisURL string

	AwinPublisherID    string
	AwinBaseURL        string
	RakutenPublisherID string
	RakutenBaseURL     string

	ChainRPCURL        string
	ChainID            int64
	ChainName          string
	NFTContractAddress string
	SignerPrivateKey   string
	NFTImageURL        string

	DefaultCurrency      string
	RateLimitRequests    int
	RateLimitWindow      time.Duration
	CORSOrigins          []string
	AdminJWTSecret       string
	MintRetryCron        string
	MintRetryBatch       int
	OwnershipConcurrency int
	RPCTimeout           time.Duration
}

var defaults = map[string]interface{}{
	"PORT":       "5000",
	"GRPC_PORT":  "50051",
	"GIN_MODE":   "release",
	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",

	"DB_DRIVER":    "mysql",
	"DB_HOST":      "127.0.0.1",
	"DB_PORT":      "3306",
	"DB_MAX_CONNS": 20,

	"REDIS_URL": "localhost:6379",

	"AWIN_BASE_URL":    "https://www.awin1.com/cread.php",
	"RAKUTEN_BASE_URL": "https://click.linksynergy.com/deeplink",

	"CHAIN_RPC_URL":        "https://spicy-rpc.chiliz.com",
	"CHAIN_ID":             88882,
	"CHAIN_NAME":           "Spicy Testnet (Chiliz)",
	"NFT_CONTRACT_ADDRESS": "0xE7350d20845FDaa6Ec54a60bad677e27c22bc8B3",
	"NFT_IMAGE_URL":        "https://back2.fan/nft.png",

	"DEFAULT_CURRENCY":      "BRL",
	"RATE_LIMIT_REQUESTS":   100,
	"RATE_LIMIT_WINDOW":     "15m",
	"CORS_ORIGINS":          "*",
	"MINT_RETRY_CRON":       "*/10 * * * *",
	"MINT_RETRY_BATCH":      50,
	"OWNERSHIP_CONCURRENCY": 8,
	"RPC_TIMEOUT":           "90s",
}

// LoadEnv loads .env from the working directory, then its parent. Missing
// files are not an error; the process environment still applies.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found in current directory, trying parent")
		if err := godotenv.Load("../.env"); err != nil {
			logrus.Info("No .env file found, using system environment variables")
		}
	}
}

func Load() *AppConfig {
	v := viper.New()
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var origins []string
	for _, o := range strings.Split(v.GetString("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	// SIGNER_PRIVATE_KEY takes precedence over the legacy THIRDWEB_PRIVATE_KEY name.
	signerKey := v.GetString("SIGNER_PRIVATE_KEY")
	if signerKey == "" {
		signerKey = v.GetString("THIRDWEB_PRIVATE_KEY")
	}

	return &AppConfig{
		Port:      v.GetString("PORT"),
		GRPCPort:  v.GetString("GRPC_PORT"),
		GinMode:   v.GetString("GIN_MODE"),
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		DBDriver:    strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseURL: v.GetString("DATABASE_URL"),
		DBHost:      v.GetString("DB_HOST"),
		DBPort:      v.GetString("DB_PORT"),
		DBUser:      v.GetString("DB_USER"),
		DBPassword:  v.GetString("DB_PASSWORD"),
		DBName:      v.GetString("DB_NAME"),
		DBMaxConns:  v.GetInt("DB_MAX_CONNS"),

		RedisURL: v.GetString("REDIS_URL"),

		AwinPublisherID:    v.GetString("AWIN_PUBLISHER_ID"),
		AwinBaseURL:        v.GetString("AWIN_BASE_URL"),
		RakutenPublisherID: v.GetString("RAKUTEN_PUBLISHER_ID"),
		RakutenBaseURL:     v.GetString("RAKUTEN_BASE_URL"),

		ChainRPCURL:        v.GetString("CHAIN_RPC_URL"),
		ChainID:            v.GetInt64("CHAIN_ID"),
		ChainName:          v.GetString("CHAIN_NAME"),
		NFTContractAddress: v.GetString("NFT_CONTRACT_ADDRESS"),
		SignerPrivateKey:   signerKey,
		NFTImageURL:        v.GetString("NFT_IMAGE_URL"),

		DefaultCurrency:      v.GetString("DEFAULT_CURRENCY"),
		RateLimitRequests:    v.GetInt("RATE_LIMIT_REQUESTS"),
		RateLimitWindow:      v.GetDuration("RATE_LIMIT_WINDOW"),
		CORSOrigins:          origins,
		AdminJWTSecret:       v.GetString("ADMIN_JWT_SECRET"),
		MintRetryCron:        v.GetString("MINT_RETRY_CRON"),
		MintRetryBatch:       v.GetInt("MINT_RETRY_BATCH"),
		OwnershipConcurrency: v.GetInt("OWNERSHIP_CONCURRENCY"),
		RPCTimeout:           v.GetDuration("RPC_TIMEOUT"),
	}
}
