package model

import (
	"os"
	"path/filepath"
)

// Version is the eventsweep release version
const Version = "0.3.0"

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "eventsweep")
	}
	return filepath.Join(os.TempDir(), "eventsweep-cache")
}
