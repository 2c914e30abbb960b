package repository

import "context"

// PendingRepository stores an in-flight admin command awaiting its target
// user id. One pending command per admin; entries expire on their own.
type PendingRepository interface {
	// Set records the pending command verb for the admin.
	Set(ctx context.Context, adminID int64, command string) error

	// Pop removes and returns the pending command, reporting whether one
	// existed.
	Pop(ctx context.Context, adminID int64) (string, bool, error)
}
