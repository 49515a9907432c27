package domain

import "fmt"

// NotFoundError reports an operation that referenced a nonexistent key.
type NotFoundError struct {
	Entity EntityType
	Key    string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

// DuplicateKeyError reports a violated uniqueness constraint.
type DuplicateKeyError struct {
	Entity EntityType
	Key    string
}

func (e DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.Key)
}

// ValidationError reports malformed input, such as a negative amount.
type ValidationError struct {
	Entity  EntityType
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.Field, e.Message)
}

// StorageError wraps a failure of the underlying persistence engine. Quota is
// set when the engine reported an out-of-space condition, which callers may
// recover from by purging old notifications and retrying.
type StorageError struct {
	Op    string
	Quota bool
	Err   error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }
