package reputation

import "time"

// Config tunes the profile cache and history view.
type Config struct {
	ProfileCacheTTL time.Duration
	HistoryLimit    int
}
