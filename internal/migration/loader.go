package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// filenamePattern matches migration scripts of the form
//
//	{version}_{name}.sql           (e.g., 001_create_employees.sql)
//	{version}_{name}_rollback.sql  (the paired down script)
//
// where {version} is a zero-padded digit run. A hyphen separator is accepted
// in place of the underscore.
var filenamePattern = regexp.MustCompile( //nolint:gochecknoglobals // compiled once, used by LoadFromDir
	`^(\d+)[_-](.+?)(_rollback)?\.sql$`,
)

// LoadFromDir scans a directory for migration scripts and returns them as
// unsorted Migration values. Rollback scripts are paired with their forward
// counterpart and never returned on their own. SQL files lacking a numeric
// version prefix are skipped with a warning so a single misnamed asset does
// not block deployment of correctly named ones.
func LoadFromDir(dir string, log zerolog.Logger) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory %s: %w", dir, err)
	}

	grouped, err := scanEntries(entries, log)
	if err != nil {
		return nil, err
	}

	return buildMigrations(grouped, dir, log)
}

// migrationFile is an intermediate struct for pairing forward/rollback files.
type migrationFile struct {
	version  string
	name     string
	upFile   string // filename only (not full path)
	downFile string // filename only (not full path)
}

// scanEntries groups directory entries by version. Two forward scripts
// claiming the same version is a hard error: the ledger keys on version and
// the apply order would be ambiguous.
func scanEntries(entries []os.DirEntry, log zerolog.Logger) (map[string]*migrationFile, error) {
	grouped := make(map[string]*migrationFile)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := filenamePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			if strings.HasSuffix(entry.Name(), ScriptExt) {
				log.Warn().Str("file", entry.Name()).Msg("skipping SQL file without numeric version prefix")
			}

			continue
		}

		version := matches[1]
		name := matches[2]
		isRollback := matches[3] != ""

		mf, ok := grouped[version]
		if !ok {
			mf = &migrationFile{version: version, name: name}
			grouped[version] = mf
		}

		if isRollback {
			mf.downFile = entry.Name()
			continue
		}

		if mf.upFile != "" {
			return nil, fmt.Errorf("duplicate migration version %s: %s and %s", version, mf.upFile, entry.Name())
		}

		mf.upFile = entry.Name()
		mf.name = name
	}

	return grouped, nil
}

// buildMigrations reads script contents and constructs Migration values.
func buildMigrations(grouped map[string]*migrationFile, dir string, log zerolog.Logger) ([]Migration, error) {
	var migrations []Migration

	for _, mf := range grouped {
		if mf.upFile == "" {
			log.Warn().Str("file", mf.downFile).Msg("skipping orphan rollback script with no forward migration")
			continue
		}

		m, err := readMigration(mf, dir)
		if err != nil {
			return nil, err
		}

		migrations = append(migrations, m)
	}

	return migrations, nil
}

// readMigration reads the forward and rollback scripts and builds a Migration.
func readMigration(mf *migrationFile, dir string) (Migration, error) {
	upPath := filepath.Join(dir, mf.upFile)

	upData, err := os.ReadFile(upPath)
	if err != nil {
		return Migration{}, fmt.Errorf("reading migration file %s: %w", upPath, err)
	}

	upSQL := strings.TrimSpace(string(upData))

	var downSQL string

	if mf.downFile != "" {
		downPath := filepath.Join(dir, mf.downFile)

		downData, err := os.ReadFile(downPath)
		if err != nil {
			return Migration{}, fmt.Errorf("reading migration file %s: %w", downPath, err)
		}

		downSQL = strings.TrimSpace(string(downData))
	}

	return Migration{
		Version:  mf.version,
		Name:     mf.name,
		UpSQL:    upSQL,
		DownSQL:  downSQL,
		Checksum: ComputeChecksum(upSQL),
		Filename: mf.upFile,
		FilePath: upPath,
	}, nil
}
