package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Database struct {
		URL string `env:"DATABASE_URL,required"`
	}

	Redis struct {
		Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Solana struct {
		RPCURL       string `env:"SOLANA_RPC_URL" envDefault:"https://api.mainnet-beta.solana.com"`
		Network      string `env:"SOLANA_NETWORK" envDefault:"solana"`
		USDCMint     string `env:"USDC_MINT" envDefault:"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"`
		ExplorerBase string `env:"EXPLORER_BASE" envDefault:"https://solscan.io/tx/"`
	}

	Auth struct {
		Domain        string        `env:"AUTH_DOMAIN" envDefault:"paidping.app"`
		URI           string        `env:"AUTH_URI" envDefault:"https://paidping.app"`
		ChainID       string        `env:"AUTH_CHAIN_ID" envDefault:"solana:mainnet"`
		SessionSecret string        `env:"SESSION_SECRET,required"`
		SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"168h"`
		NonceTTL      time.Duration `env:"NONCE_TTL" envDefault:"10m"`
	}

	RateLimit struct {
		PayerPerHour  int `env:"RATE_PAYER_PER_HOUR" envDefault:"6"`
		PayerBurst    int `env:"RATE_PAYER_BURST" envDefault:"2"`
		PairPerMinute int `env:"RATE_PAIR_PER_MINUTE" envDefault:"2"`
		PairBurst     int `env:"RATE_PAIR_BURST" envDefault:"1"`
		NoncePerMin   int `env:"RATE_NONCE_PER_MINUTE" envDefault:"10"`
		NonceBurst    int `env:"RATE_NONCE_BURST" envDefault:"5"`
	}

	Admin struct {
		ResetToken string `env:"ADMIN_RESET_TOKEN" envDefault:""`
	}
}

// Load reads configuration from the environment, honoring a local .env
// file when present. Missing required variables make it fail.
func Load() (*Config, error) {
	// Ignore a missing .env file; in production the variables are set
	// directly in the environment.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
