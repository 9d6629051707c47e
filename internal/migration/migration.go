package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// RollbackSuffix marks a script as the down counterpart of a forward
// migration sharing its base name.
const RollbackSuffix = "_rollback"

// ScriptExt is the extension migration scripts must carry.
const ScriptExt = ".sql"

// ErrNoVersion indicates a name carries no leading numeric version.
var ErrNoVersion = errors.New("no numeric version prefix")

// Migration represents a single database migration loaded from disk.
type Migration struct {
	Version  string // "001" — leading digit run of the filename
	Name     string // "create_employees" — extracted from filename
	UpSQL    string // Contents of the forward script
	DownSQL  string // Contents of the paired _rollback script (empty if none)
	Checksum string // SHA-256 hex digest of UpSQL
	Filename string // Forward script filename, e.g. "001_create_employees.sql"
	FilePath string // Full path to the forward script
}

// ComputeChecksum returns the SHA-256 hex digest of the given SQL string.
func ComputeChecksum(sql string) string {
	h := sha256.Sum256([]byte(sql))

	return hex.EncodeToString(h[:])
}

// ResolveVersion extracts the version from a bare version string, a forward
// filename, or a rollback filename. All three forms share the same leading
// digit run.
func ResolveVersion(target string) (string, error) {
	i := 0
	for i < len(target) && target[i] >= '0' && target[i] <= '9' {
		i++
	}

	if i == 0 {
		return "", ErrNoVersion
	}

	if i < len(target) && target[i] != '_' && target[i] != '-' {
		return "", ErrNoVersion
	}

	return target[:i], nil
}

// RollbackName returns the down-script filename paired with the given forward
// filename. A name already carrying the rollback suffix is returned unchanged.
func RollbackName(filename string) string {
	base := strings.TrimSuffix(filename, ScriptExt)
	if strings.HasSuffix(base, RollbackSuffix) {
		return base + ScriptExt
	}

	return base + RollbackSuffix + ScriptExt
}
