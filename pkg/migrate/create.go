package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeName = regexp.MustCompile(`[^a-z0-9]+`)

const sqlTemplate = markUp + `
` + markBegin + `
-- %[1]s
` + markEnd + `

` + markDown + `
` + markBegin + `
-- rollback %[1]s
` + markEnd + `
`

// CreateSQLMigration writes an empty <version>_<name>.sql into dir and
// returns its path. The version is the current UTC timestamp and must sort
// after every existing migration.
func CreateSQLMigration(dir, name string) (string, error) {
	slug := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}
	existing, err := listVersions(dir)
	if err != nil {
		return "", err
	}

	version := time.Now().UTC().Format("20060102150405")
	if latest := latestVersion(existing); latest >= version {
		return "", fmt.Errorf("version %s does not sort after existing %s", version, latest)
	}

	path := filepath.Join(dir, version+"_"+slug+".sql")
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %q: %w", path, err)
	}
	_, err = fmt.Fprintf(file, sqlTemplate, slug)
	return path, errors.Join(err, file.Close())
}
