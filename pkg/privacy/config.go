package privacy

import (
	"sync"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload" // Load .env file automatically
)

var (
	cfg  Config
	once sync.Once
)

type Config struct {
	MasterKey string `env:"ENCRYPTION_MASTER_KEY,required"` // Base64-encoded 32-byte master key
}

// LoadConfig loads the master-key configuration from the environment exactly
// once per process.
func LoadConfig() (Config, error) {
	var err error
	once.Do(func() {
		var c Config
		if parseErr := env.Parse(&c); parseErr != nil {
			err = parseErr
			return
		}
		if c.MasterKey == "" {
			err = ErrMasterKeyNotSet
			return
		}
		cfg = c
	})
	if err != nil {
		return Config{}, err
	}
	if cfg.MasterKey == "" {
		return Config{}, ErrMasterKeyNotSet
	}
	return cfg, nil
}
