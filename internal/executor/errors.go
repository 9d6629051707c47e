package executor

import "errors"

// ErrRollbackFileMissing indicates no rollback script exists for the
// requested version. The database is untouched when this is returned.
var ErrRollbackFileMissing = errors.New("rollback script not found")

// ErrNoMigrationsDir indicates the executor was asked to roll back without
// a migrations directory to load rollback scripts from.
var ErrNoMigrationsDir = errors.New("migrations directory not configured")
