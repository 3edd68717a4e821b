package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy は固定間隔のリトライ設定です。待機時間は増加せず、ジッターもありません。
type RetryPolicy struct {
	// MaxAttempts は最初の呼び出しを含む最大試行回数です。
	MaxAttempts int
	// Delay は各試行の間の待機時間です。
	Delay time.Duration
}

// DefaultGeneratePolicy は通常生成とストリーム接続確立に使うポリシーです。
func DefaultGeneratePolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultRetryDelay}
}

// DefaultProbePolicy は接続テストに使う軽量なポリシーです。
func DefaultProbePolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultProbeMaxAttempts, Delay: DefaultProbeDelay}
}

func (p RetryPolicy) validate() error {
	if p.MaxAttempts < 1 || p.Delay < 0 {
		return fmt.Errorf("%w (試行回数: %d, 待機時間: %v)", ErrInvalidRetryPolicy, p.MaxAttempts, p.Delay)
	}
	return nil
}

// backOff はポリシーを backoff.BackOff に変換します。
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	retries := 0
	if p.MaxAttempts > 1 {
		retries = p.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(retries)), ctx)
}

// withRetry は op を実行し、shouldRetry が true を返す失敗に限りポリシーに従って再試行します。
// 再試行できない場合は最後のエラーをそのまま返します。戻り値の attempts は実際の試行回数です。
func withRetry[T any](ctx context.Context, policy RetryPolicy, newTimer func() backoff.Timer, label string,
	op func() (T, error), shouldRetry func(error) bool) (result T, attempts int, err error) {

	operation := func() error {
		attempts++
		v, opErr := op()
		if opErr != nil {
			if !shouldRetry(opErr) {
				return backoff.Permanent(opErr)
			}
			return opErr
		}
		result = v
		return nil
	}

	notify := func(err error, next time.Duration) {
		slog.WarnContext(ctx, "一時的なエラーのため再試行します",
			"対象", label,
			"試行", attempts,
			"最大試行回数", policy.MaxAttempts,
			"待機", next,
			"error", err,
		)
	}

	var timer backoff.Timer
	if newTimer != nil {
		timer = newTimer()
	}

	err = backoff.RetryNotifyWithTimer(operation, policy.backOff(ctx), notify, timer)
	return result, attempts, err
}
