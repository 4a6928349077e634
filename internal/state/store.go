package state

import "context"

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Journal records every leg attempt. It is never read back for decisions.
type Journal interface {
	AppendExecution(ctx context.Context, exec Execution) error
	RecentExecutions(ctx context.Context, limit int) ([]Execution, error)
}
