package config

import (
	"fmt"
	"strconv"
	"strings"
)

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"DATABASE_URL":              &c.Database.URL,
		"SUPABASE_URL":              &c.Supabase.URL,
		"SUPABASE_SERVICE_ROLE_KEY": &c.Supabase.ServiceRoleKey,
		"SUPABASE_DB_PASSWORD":      &c.Supabase.DBPassword,
		"TRANSCRIPT_BUCKET":         &c.Supabase.Bucket,
		"TADDY_API_KEY":             &c.Taddy.APIKey,
		"TADDY_USER_ID":             &c.Taddy.UserID,
		"TADDY_TIER":                &c.Taddy.Tier,
		"DEEPGRAM_API_KEY":          &c.Deepgram.APIKey,
		"MONGO_URI":                 &c.Mongo.URI,
		"LOG_LEVEL":                 &c.Logging.Level,
		"LOG_FORMAT":                &c.Logging.Format,
		"TRANSCRIPT_LOCK_BACKEND":   &c.Worker.LockBackend,
		"TRANSCRIPT_RECORD_STORE":   &c.Worker.RecordStore,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"TRANSCRIPT_LOOKBACK_HOURS":        &c.Worker.LookbackHours,
		"TRANSCRIPT_MAX_REQUESTS":          &c.Worker.MaxRequests,
		"TRANSCRIPT_CONCURRENCY":           &c.Worker.Concurrency,
		"TRANSCRIPT_BATCH_SIZE":            &c.Worker.BatchSize,
		"TRANSCRIPT_LAST_N":                &c.Worker.LastN,
		"TRANSCRIPT_MAX_FALLBACKS_PER_RUN": &c.Fallback.MaxPerRun,
		"TRANSCRIPT_MAX_FILE_SIZE_MB":      &c.Fallback.MaxFileSizeMB,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = n
	}

	bools := map[string]*bool{
		"TRANSCRIPT_USE_LOCK":         &c.Worker.UseLock,
		"TRANSCRIPT_BULK_OVERWRITE":   &c.Worker.BulkOverwrite,
		"TRANSCRIPT_FALLBACK_ENABLED": &c.Fallback.Enabled,
	}
	for key, dst := range bools {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = b
	}

	if v, ok := lookup("TRANSCRIPT_FALLBACK_STATUSES"); ok {
		c.Fallback.Statuses = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
