package gemini

import (
	"errors"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{name: "正常系: 空の設定", config: Config{}},
		{name: "正常系: Temperature が境界値(0.0)", config: Config{Temperature: float32Ptr(0.0)}},
		{name: "正常系: Temperature が境界値(2.0)", config: Config{Temperature: float32Ptr(2.0)}},
		{
			name:   "正常系: ポリシーとタイムアウトの指定",
			config: Config{Timeout: time.Minute, StreamPolicy: &RetryPolicy{MaxAttempts: 5, Delay: time.Second}},
		},
		{name: "異常系: Temperature が範囲外(2.1)", config: Config{Temperature: float32Ptr(2.1)}, wantErr: ErrInvalidTemperature},
		{name: "異常系: Temperature が負の値(-0.1)", config: Config{Temperature: float32Ptr(-0.1)}, wantErr: ErrInvalidTemperature},
		{name: "異常系: ポリシーの待機時間が負", config: Config{GeneratePolicy: &RetryPolicy{MaxAttempts: 1, Delay: -1}}, wantErr: ErrInvalidRetryPolicy},
		{name: "異常系: タイムアウトが負", config: Config{Timeout: -1}, wantErr: ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.validate()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Errorf("validate() unexpected error = %v", err)
			}
		})
	}
}

func TestConfig_GetTemperature(t *testing.T) {
	t.Run("nil の場合はデフォルト値を返す", func(t *testing.T) {
		cfg := Config{Temperature: nil}
		if got := cfg.getTemperature(); got != DefaultTemperature {
			t.Errorf("getTemperature() = %v, want %v", got, DefaultTemperature)
		}
	})

	t.Run("値がある場合はその値を返す", func(t *testing.T) {
		cfg := Config{Temperature: float32Ptr(1.5)}
		if got := cfg.getTemperature(); got != 1.5 {
			t.Errorf("getTemperature() = %v, want 1.5", got)
		}
	})
}

func TestConfig_FallbackKey(t *testing.T) {
	orig := BuildAPIKey
	t.Cleanup(func() { BuildAPIKey = orig })
	BuildAPIKey = "embedded"

	if got := (Config{}).fallbackKey(); got != "embedded" {
		t.Errorf("fallbackKey() = %q, want embedded", got)
	}
	if got := (Config{FallbackAPIKey: "configured"}).fallbackKey(); got != "configured" {
		t.Errorf("fallbackKey() = %q, want configured", got)
	}
}
