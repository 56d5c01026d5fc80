package emergency

import (
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload" // Load .env file automatically
)

var (
	cfg  Config
	once sync.Once
)

// Config carries the time windows governing grants. All values have
// defaults; override via environment for deployments with different
// compliance requirements.
type Config struct {
	// AccessDuration is the fixed lifetime of a grant.
	AccessDuration time.Duration `env:"EMERGENCY_ACCESS_DURATION" envDefault:"1h"`
	// ReviewSLA is how long an unreviewed grant may sit before it is
	// flagged overdue.
	ReviewSLA time.Duration `env:"EMERGENCY_REVIEW_SLA" envDefault:"24h"`
	// RetentionReviewed is how long reviewed grants are kept after review.
	RetentionReviewed time.Duration `env:"EMERGENCY_RETENTION_REVIEWED" envDefault:"168h"`
	// RetentionUnreviewed is how long unreviewed grants are kept after
	// expiry. Longer than the reviewed window: unresolved compliance items
	// must not quietly age out.
	RetentionUnreviewed time.Duration `env:"EMERGENCY_RETENTION_UNREVIEWED" envDefault:"2160h"`
}

// LoadConfig loads the grant time windows from the environment once per
// process.
func LoadConfig() (Config, error) {
	var err error
	once.Do(func() {
		var c Config
		if parseErr := env.Parse(&c); parseErr != nil {
			err = parseErr
			return
		}
		cfg = c
	})
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
