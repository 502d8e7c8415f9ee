package audio

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/vowrite/vowrite/internal/logging"
	"github.com/vowrite/vowrite/internal/paths"
)

// RemoveStaleRecordings deletes leftover recording files older than maxAge.
// Recordings normally delete themselves after upload, but a crash mid-pipeline
// can leave them behind.
func RemoveStaleRecordings(maxAge time.Duration) {
	removed := removeStaleIn(paths.RecordingDir(), maxAge)
	if removed > 0 {
		L_info("audio: removed stale recordings", "count", removed)
	}
}

func removeStaleIn(dir string, maxAge time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		L_debug("audio: cannot scan recording dir", "dir", dir, "error", err)
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	var removed int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "vowrite_") || !strings.HasSuffix(name, ".wav") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			L_debug("audio: failed to remove stale recording", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed
}
