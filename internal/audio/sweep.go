package audio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Referenced reports whether some stored entity owns the artifact at path.
type Referenced func(path string) bool

// Sweep deletes files in dirs that nothing references and that were last
// modified more than grace ago. It returns the removed paths.
func Sweep(dirs []string, referenced Referenced, grace time.Duration, now time.Time) ([]string, error) {
	var removed []string

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("read artifact dir %s: %w", dir, err)
		}

		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if now.Sub(info.ModTime()) < grace {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			if referenced(path) {
				continue
			}
			if err := Remove(path); err != nil {
				slog.Warn("audio: orphan removal failed", "path", path, "error", err)
				continue
			}
			removed = append(removed, path)
		}
	}

	return removed, nil
}
