package exec

import (
	"context"
	"errors"
	"sync"
)

// Settle runs every task concurrently and waits for all of them. The
// returned error joins every failure; one failure never cancels the others.
func Settle(ctx context.Context, tasks ...func(context.Context) error) error {
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task func(context.Context) error) {
			defer wg.Done()
			errs[i] = task(ctx)
		}(i, task)
	}
	wg.Wait()
	return errors.Join(errs...)
}
