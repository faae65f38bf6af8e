package migrate

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var migrationFile = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	markUp    = "-- +goose Up"
	markDown  = "-- +goose Down"
	markBegin = "-- +goose StatementBegin"
	markEnd   = "-- +goose StatementEnd"
)

// ValidateDir checks every .sql file in dir: the timestamped filename, unique
// versions, and well-formed goose annotations.
func ValidateDir(dir string) error {
	versions, err := listVersions(dir)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return fmt.Errorf("no migrations found in %q", dir)
	}
	for _, name := range versions {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		if err := checkAnnotations(content); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

// listVersions maps version to filename, rejecting strays and duplicates.
func listVersions(dir string) (map[string]string, error) {
	if dir == "" {
		return nil, errors.New("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}
	versions := make(map[string]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		match := migrationFile.FindStringSubmatch(name)
		if match == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, dup := versions[match[1]]; dup {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", match[1], prev, name)
		}
		versions[match[1]] = name
	}
	return versions, nil
}

func latestVersion(versions map[string]string) string {
	keys := make([]string, 0, len(versions))
	for v := range versions {
		keys = append(keys, v)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[len(keys)-1]
}

// checkAnnotations wants one Up before one Down, and statement blocks that
// open and close in order.
func checkAnnotations(content []byte) error {
	var up, down, open int
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case markUp:
			if down > 0 {
				return errors.New("Up section after Down")
			}
			up++
		case markDown:
			if open > 0 {
				return errors.New("Down inside an open StatementBegin")
			}
			down++
		case markBegin:
			if open > 0 {
				return errors.New("nested StatementBegin")
			}
			open++
		case markEnd:
			if open == 0 {
				return errors.New("StatementEnd without StatementBegin")
			}
			open--
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	switch {
	case up != 1:
		return fmt.Errorf("expected one %q, found %d", markUp, up)
	case down != 1:
		return fmt.Errorf("expected one %q, found %d", markDown, down)
	case open != 0:
		return errors.New("unterminated StatementBegin")
	}
	return nil
}
