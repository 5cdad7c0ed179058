package settings

import (
	"os"
	"sync"

	"github.com/joho/godotenv"
)

type Arguments struct {
	// MongoURI is the connection string of the document store backing the
	// design repositories.
	MongoURI string

	// Database is the name of the store database holding the design
	// collections.
	Database string

	// VersionID selects the application version to operate on.
	VersionID string

	// OutDir is where generated typings are written. Empty means stdout.
	OutDir string

	// Strongly verbose logging
	Verbose bool

	// Debug switches the logger to its development configuration.
	Debug bool
}

var (
	instance *Arguments
	once     sync.Once
)

// GetSettings returns the process wide settings instance. Environment
// defaults (including a .env file, when present) are loaded on first use;
// command line flags overwrite them afterwards.
func GetSettings() *Arguments {
	once.Do(func() {
		// A missing .env file is fine, the environment may be set directly.
		_ = godotenv.Load()

		instance = &Arguments{
			MongoURI: os.Getenv("MONGODB_URI"),
			Database: envOr("MODELFORGE_DB", "modelforge"),
		}
	})
	return instance
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
