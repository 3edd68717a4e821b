package gemini

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultModel は設定が無い場合に使用するモデル ID です。
	DefaultModel = "gemini-3-pro-preview"

	DefaultTemperature float32 = 0.9

	// 通常生成およびストリーム接続確立時のリトライ設定
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second

	// 接続テスト用の軽量なリトライ設定
	DefaultProbeMaxAttempts = 2
	DefaultProbeDelay       = 1 * time.Second

	// 接続テストで送信する最小のプロンプト
	probePrompt = "Hello"
)

// KnownModels は CLI のヘルプや設定画面で提示するモデルの一覧です。
var KnownModels = []ModelInfo{
	{ID: "gemini-3-pro-preview", Name: "Gemini 3 Pro (Preview)", Description: "最高品質。混雑時は 503 が返りやすい"},
	{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Description: "安定版の高品質モデル"},
	{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Description: "高速・低コスト"},
}

// ModelInfo はモデル ID と表示用の情報です。
type ModelInfo struct {
	ID          string
	Name        string
	Description string
}

// Client は Gemini SDK をラップしたメイン構造体です。
// 呼び出しごとに状態を持たないため、複数の goroutine から同時に利用できます。
type Client struct {
	credentials CredentialResolver
	factory     *clientFactory
	settings    GenerationSettings
	catalog     *Catalog
	timeout     time.Duration

	generatePolicy RetryPolicy
	streamPolicy   RetryPolicy
	probePolicy    RetryPolicy

	// テストで待機を差し替えるためのフック
	newTimer func() backoff.Timer
}

// Prompt は 1 回の生成呼び出しの入力です。
// Text と Asset の少なくとも一方が必要です。
type Prompt struct {
	Text              string
	Asset             *Asset
	SystemInstruction string
	Model             string
	// APIKey が空の場合はビルド時の設定値、環境変数の順に解決されます。
	APIKey string
}

// ProbeResult は接続テストの結果です。
type ProbeResult struct {
	Success bool
	Message string
}

// clientFactory は API キーから SDK クライアントを生成します。
// 直前のキーに対するクライアントのみを保持し、キーが変わった時点で作り直します。
type clientFactory struct {
	mu      sync.Mutex
	key     string
	current contentGenerator
	build   func(ctx context.Context, apiKey string) (contentGenerator, error)
}
