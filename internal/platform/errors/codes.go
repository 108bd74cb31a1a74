// Package errors provides structured error codes for store startup and use.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Startup errors
	CodeStoreOpenFailed      Code = "STORE_OPEN_FAILED"
	CodeStorePragmaFailed    Code = "STORE_PRAGMA_FAILED"
	CodeStoreMigrationFailed Code = "STORE_MIGRATION_FAILED"
	CodeStoreStartupTimeout  Code = "STORE_STARTUP_TIMEOUT"
	CodeStoreClosed          Code = "STORE_CLOSED"

	// Repository errors
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeForeignKeyViolated Code = "FOREIGN_KEY_VIOLATED"
	CodeConstraintViolated Code = "CONSTRAINT_VIOLATED"
	CodeLevelOverlap       Code = "LEVEL_OVERLAP"
	CodeInvalidLanguage    Code = "INVALID_LANGUAGE"
)

// Fatal reports whether the code means the data layer must not be used.
func (c Code) Fatal() bool {
	switch c {
	case CodeStoreOpenFailed,
		CodeStorePragmaFailed,
		CodeStoreMigrationFailed,
		CodeStoreStartupTimeout,
		CodeStoreClosed:
		return true
	default:
		return false
	}
}
