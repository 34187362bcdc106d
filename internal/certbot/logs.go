package certbot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultLogLines is how many trailing log lines the API returns when the
// caller does not ask for a specific count.
const DefaultLogLines = 100

// Logs returns the last limit non-empty lines of the most recently modified
// .log file under the certbot logs directory. A missing directory or an
// empty one yields an empty slice, not an error.
func (s *Service) Logs(limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultLogLines
	}

	entries, err := os.ReadDir(s.cfg.LogsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read logs dir: %w", err)
	}

	var newest string
	var newestMod int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = entry.Name()
			newestMod = mod
		}
	}
	if newest == "" {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(s.cfg.LogsDir, newest))
	if err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	lines := make([]string, 0, limit)
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, nil
}
