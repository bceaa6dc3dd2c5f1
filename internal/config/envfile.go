package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// LocalEnvFile holds machine-local credentials. It is loaded before .env.
const LocalEnvFile = ".env.local"

// AddMissing appends the non-empty entries whose keys the env file at path
// does not define yet, creating the file if needed. Keys already present
// keep their value. It returns the added keys, sorted.
func AddMissing(path string, entries map[string]string) ([]string, error) {
	existing, err := godotenv.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	add := make(map[string]string, len(entries))
	for key, value := range entries {
		if value == "" {
			continue
		}
		if _, ok := existing[key]; ok {
			continue
		}
		add[key] = value
	}
	if len(add) == 0 {
		return nil, nil
	}

	lines, err := godotenv.Marshal(add)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entries: %w", err)
	}

	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var b strings.Builder
	if prior := strings.TrimRight(string(content), " \t\r\n"); prior != "" {
		b.WriteString(prior)
		b.WriteString("\n\n")
	}
	b.WriteString(lines)
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	keys := make([]string, 0, len(add))
	for key := range add {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
