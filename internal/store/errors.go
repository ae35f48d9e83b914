package store

import "errors"

var (
	ErrConnectFailed   = errors.New("failed to connect to database")
	ErrMigrationFailed = errors.New("failed to migrate report table")
	ErrSaveFailed      = errors.New("failed to save report")
	ErrQueryFailed     = errors.New("failed to query reports")
)
