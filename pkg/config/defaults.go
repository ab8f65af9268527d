package config

import (
	"os"
	"path/filepath"
)

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Worker: Worker{
			LookbackHours: 24,
			MaxRequests:   15,
			Concurrency:   10,
			BatchSize:     50,
			BatchPauseMs:  2000,
			UseLock:       true,
			LockKey:       "transcript_worker",
			LockBackend:   LockBackendPostgres,
			LockDir:       filepath.Join(os.TempDir(), "podnotes"),
			RecordStore:   RecordStoreSQL,
		},
		Fallback: Fallback{
			Enabled:       true,
			MaxPerRun:     50,
			Statuses:      []string{"no_match", "not_found", "error", "processing"},
			MaxFileSizeMB: 200,
		},
		Database: Database{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifeSecs: 300,
		},
		Supabase: Supabase{
			Bucket: "transcripts",
		},
		Taddy: Taddy{
			BaseURL:       "https://api.taddy.org",
			Tier:          "free",
			RetryAttempts: 2,
		},
		Deepgram: Deepgram{
			BaseURL:        "https://api.deepgram.com",
			Model:          "nova-2",
			TimeoutSeconds: 600,
		},
		Mongo: Mongo{
			Database:   "podnotes",
			Collection: "worker_runs",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}
