package gemini

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTemperature = errors.New("温度設定（Temperature）は 0.0 から 2.0 の間である必要があります")
	ErrInvalidRetryPolicy = errors.New("リトライ設定が不正です（試行回数は 1 以上、待機時間は 0 以上）")
	ErrInvalidTimeout     = errors.New("タイムアウトは 0 以上である必要があります")
)

// Config は初期化用の設定です。
// API キーは呼び出しごとに Prompt.APIKey で渡すこともできます。
type Config struct {
	// FallbackAPIKey は呼び出し側がキーを渡さなかった場合に使用されます。
	// 空の場合はビルド時に埋め込まれた BuildAPIKey が使われます。
	FallbackAPIKey string
	Temperature    *float32
	// Language はユーザー向けメッセージの言語です（例: "ja", "en", "zh-TW"）。
	Language string
	// Timeout は 1 回の API 呼び出しに設定する期限です。0 の場合は設定しません。
	// 再試行の待機時間は含みません。ストリームでは接続の試行ごとに設定され、
	// 確立したストリームの最後の受信までを含みます。
	Timeout time.Duration

	GeneratePolicy *RetryPolicy
	StreamPolicy   *RetryPolicy
	ProbePolicy    *RetryPolicy
}

// validate は設定内容が正しいか、値の範囲をチェックします。
func (c Config) validate() error {
	if err := c.validateTemperature(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w (入力値: %v)", ErrInvalidTimeout, c.Timeout)
	}
	for _, p := range []*RetryPolicy{c.GeneratePolicy, c.StreamPolicy, c.ProbePolicy} {
		if p == nil {
			continue
		}
		if err := p.validate(); err != nil {
			return err
		}
	}
	return nil
}

// validateTemperature は Temperature の値が許容範囲内にあるかのみを検証します。
func (c Config) validateTemperature() error {
	if c.Temperature == nil {
		return nil
	}
	val := *c.Temperature
	if val < 0.0 || val > 2.0 {
		return fmt.Errorf("%w (入力値: %f)", ErrInvalidTemperature, val)
	}
	return nil
}

// getTemperature は検証済みの Temperature またはデフォルト値を返します。
func (c Config) getTemperature() float32 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// fallbackKey は設定値、ビルド時の埋め込み値の順でフォールバックキーを返します。
func (c Config) fallbackKey() string {
	if c.FallbackAPIKey != "" {
		return c.FallbackAPIKey
	}
	return BuildAPIKey
}

func policyOrDefault(p *RetryPolicy, def RetryPolicy) RetryPolicy {
	if p == nil {
		return def
	}
	return *p
}
