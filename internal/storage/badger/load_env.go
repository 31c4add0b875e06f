package badger

import (
	"bufio"
	"context"
	"os"
	"strings"
)

// LoadEnvFile seeds the KV store from a .env-style file. A missing file is
// not an error: deployments without one resolve API keys from process env
// or config instead. Lines are KEY=value with an optional matching pair of
// quotes around the value; # starts a comment.
func (m *Manager) LoadEnvFile(ctx context.Context, filePath string) error {
	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		m.logger.Debug().Str("file", filePath).Msg(".env file does not exist, skipping")
		return nil
	}
	if err != nil {
		// Non-fatal: unreadable .env degrades to env/config resolution
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to open .env file")
		return nil
	}
	defer file.Close()

	loaded, skipped := 0, 0
	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := parseEnvLine(line)
		if !ok {
			m.logger.Warn().
				Str("file", filePath).
				Int("line", lineNum).
				Msg("Skipping malformed .env line")
			skipped++
			continue
		}

		if err := m.kv.Set(ctx, key, value, "Loaded from .env file"); err != nil {
			m.logger.Error().Err(err).Str("key", key).Msg("Failed to store variable from .env")
			skipped++
			continue
		}
		m.logger.Debug().Str("key", key).Msg("Loaded variable from .env")
		loaded++
	}

	if err := scanner.Err(); err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Error reading .env file")
	}

	m.logger.Debug().
		Str("file", filePath).
		Int("loaded", loaded).
		Int("skipped", skipped).
		Msg("Finished loading variables from .env file")

	return nil
}

// parseEnvLine splits KEY=value, stripping one matching pair of quotes from
// the value. Lines without '=' and empty keys or values return ok=false.
func parseEnvLine(line string) (string, string, bool) {
	k, v, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}

	key := strings.TrimSpace(k)
	value := strings.TrimSpace(v)
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if first == last && (first == '"' || first == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	if key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}
