package bounded

import (
	"context"
	"errors"
	"time"
)

// ErrAbandoned — вызов не уложился в отведённое время и брошен.
var ErrAbandoned = errors.New("call abandoned after timeout")

// Do выполняет fn с дедлайном timeout. Если fn не вернулась вовремя,
// Do возвращает ErrAbandoned, не дожидаясь её; fn получает отменённый контекст.
func Do(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ErrAbandoned
	}
}
