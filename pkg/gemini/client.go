package gemini

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"

	"google.golang.org/genai"
)

// NewClient は提供された設定に基づいて、新しいクライアントを作成します。
// SDK クライアントは API キーが確定する最初の呼び出し時に生成されます。
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Client{
		credentials:    CredentialResolver{Fallback: cfg.fallbackKey()},
		factory:        newClientFactory(newGenAIGenerator),
		settings:       newGenerationSettings(cfg.getTemperature(), genai.HarmBlockThresholdBlockNone),
		catalog:        NewCatalog(cfg.Language),
		timeout:        cfg.Timeout,
		generatePolicy: policyOrDefault(cfg.GeneratePolicy, DefaultGeneratePolicy()),
		streamPolicy:   policyOrDefault(cfg.StreamPolicy, DefaultGeneratePolicy()),
		probePolicy:    policyOrDefault(cfg.ProbePolicy, DefaultProbePolicy()),
	}, nil
}

// newGenAIGenerator は Gemini API バックエンドの SDK クライアントを作成します。
func newGenAIGenerator(ctx context.Context, apiKey string) (contentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("Geminiクライアントの作成に失敗しました: %w", err)
	}
	return client.Models, nil
}

// ProbeConnection は "Hello" を送信して API キーとモデルの疎通を確認します。
// 応答テキストが空の場合は失敗として扱います。エラーを返すことはなく、結果は常に ProbeResult で表します。
func (c *Client) ProbeConnection(ctx context.Context, model, apiKey string) ProbeResult {
	model = modelOrDefault(model)

	gen, err := c.generator(ctx, apiKey)
	if err != nil {
		return c.probeFailure(ctx, err, model, 0)
	}

	req := probeRequest(model)
	op := func() (string, error) {
		return c.generateOnce(ctx, gen, req)
	}

	_, attempts, err := withRetry(ctx, c.probePolicy, c.newTimer, callLabel("接続テスト", model), op, isRetryable)
	if err != nil {
		return c.probeFailure(ctx, err, model, attempts)
	}
	return ProbeResult{Success: true, Message: c.catalog.m.probeSuccess}
}

// Generate はリクエストを送信し、応答全体のテキストを返します。
// 過負荷によるエラーはポリシーに従って再試行し、それ以外のエラーは即座に分類して返します。
func (c *Client) Generate(ctx context.Context, p Prompt) (string, error) {
	model := modelOrDefault(p.Model)

	gen, req, err := c.prepare(ctx, p, model)
	if err != nil {
		return "", c.catalog.Translate(err, model, 0)
	}

	op := func() (string, error) {
		return c.generateOnce(ctx, gen, req)
	}

	text, attempts, err := withRetry(ctx, c.generatePolicy, c.newTimer, callLabel("生成", model), op, isRetryable)
	if err != nil {
		return "", c.failure(ctx, err, model, attempts)
	}
	return text, nil
}

// GenerateStream はストリーミングで生成し、テキスト断片を届いた順に返すイテレータを返します。
//
// 入力や API キーの検証エラーは通信前にこの関数の戻り値として返されます。
// 接続の確立（最初の応答の受信）までは再試行されますが、断片を受け取り始めた後のエラーは
// 再試行せず、その時点でイテレータがエラーを返して終了します。それまでに返した断片は有効です。
// イテレータは一度しか読み取れません。途中で range を抜けると接続は直ちに解放されます。
func (c *Client) GenerateStream(ctx context.Context, p Prompt) (iter.Seq2[string, error], error) {
	model := modelOrDefault(p.Model)

	gen, req, err := c.prepare(ctx, p, model)
	if err != nil {
		return nil, c.catalog.Translate(err, model, 0)
	}

	var consumed atomic.Bool
	return func(yield func(string, error) bool) {
		if consumed.Swap(true) {
			yield("", c.catalog.Translate(newLocalError(KindUnknown, ErrStreamConsumed), model, 0))
			return
		}
		c.stream(ctx, gen, req, yield)
	}, nil
}

// streamConn は確立済みのストリームです。first は接続確立時に受け取った最初の応答です。
type streamConn struct {
	next   func() (*genai.GenerateContentResponse, error, bool)
	stop   func()
	cancel context.CancelFunc
	first  *genai.GenerateContentResponse
	ok     bool
}

func (s *streamConn) close() {
	s.stop()
	s.cancel()
}

func (c *Client) stream(ctx context.Context, gen contentGenerator, req *Request, yield func(string, error) bool) {
	// 期限は接続の試行ごとに設定し、確立したストリームではその後の受信にも引き継ぐ
	connect := func() (*streamConn, error) {
		callCtx, cancel := withTimeout(ctx, c.timeout)
		next, stop := iter.Pull2(gen.GenerateContentStream(callCtx, req.Model, req.Contents, req.Config))
		first, err, ok := next()
		if err != nil {
			stop()
			cancel()
			return nil, err
		}
		return &streamConn{next: next, stop: stop, cancel: cancel, first: first, ok: ok}, nil
	}

	conn, attempts, err := withRetry(ctx, c.streamPolicy, c.newTimer, callLabel("ストリーム接続", req.Model), connect, isRetryable)
	if err != nil {
		yield("", c.failure(ctx, err, req.Model, attempts))
		return
	}
	defer conn.close()
	slog.DebugContext(ctx, "ストリームを確立しました", "モデル", req.Model, "試行", attempts)

	var (
		emitted bool
		reason  genai.FinishReason
	)
	resp, ok := conn.first, conn.ok
	for ok {
		var text string
		text, reason = extractText(resp)
		if text != "" {
			emitted = true
			if !yield(text, nil) {
				slog.DebugContext(ctx, "ストリームの読み取りが中断されました", "モデル", req.Model)
				return
			}
		}

		resp, err, ok = conn.next()
		if err != nil {
			// 受信途中のエラーは再試行していないため、試行回数は渡さない
			yield("", c.failure(ctx, err, req.Model, 0))
			return
		}
	}

	if !emitted {
		yield("", c.failure(ctx, emptyResponseError(reason), req.Model, attempts))
	}
}

// prepare は通信前の検証（リクエストの組み立てと API キーの解決）を行います。
func (c *Client) prepare(ctx context.Context, p Prompt, model string) (contentGenerator, *Request, error) {
	req, err := BuildRequest(p.Text, p.Asset, p.SystemInstruction, model, c.settings)
	if err != nil {
		return nil, nil, err
	}
	gen, err := c.generator(ctx, p.APIKey)
	if err != nil {
		return nil, nil, err
	}
	return gen, req, nil
}

func (c *Client) generator(ctx context.Context, apiKey string) (contentGenerator, error) {
	key, err := c.credentials.Resolve(apiKey)
	if err != nil {
		return nil, err
	}
	return c.factory.get(ctx, key)
}

// generateOnce は 1 回分の API 呼び出しです。空の応答は ErrEmptyResponse として扱います。
func (c *Client) generateOnce(ctx context.Context, gen contentGenerator, req *Request) (string, error) {
	callCtx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := gen.GenerateContent(callCtx, req.Model, req.Contents, req.Config)
	if err != nil {
		return "", err
	}
	text, reason := extractText(resp)
	if text == "" {
		return "", emptyResponseError(reason)
	}
	return text, nil
}

// failure は最終的なエラーを分類してログに記録し、表示用のエラーを返します。
func (c *Client) failure(ctx context.Context, err error, model string, attempts int) error {
	ce := c.catalog.Translate(err, model, attempts)
	slog.ErrorContext(ctx, "Gemini API 呼び出しに失敗しました",
		"モデル", model,
		"分類", ce.Kind.String(),
		"ステータス", ce.StatusCode,
		"試行", attempts,
		"error", err,
	)
	return ce
}

func (c *Client) probeFailure(ctx context.Context, err error, model string, attempts int) ProbeResult {
	ce := c.catalog.Translate(err, model, attempts)
	slog.WarnContext(ctx, "接続テストに失敗しました",
		"モデル", model,
		"分類", ce.Kind.String(),
		"試行", attempts,
		"error", err,
	)
	return ProbeResult{Success: false, Message: c.catalog.probeMessage(ce)}
}

func callLabel(op, model string) string {
	return fmt.Sprintf("Gemini API %s（モデル: %s）", op, model)
}

func newClientFactory(build func(ctx context.Context, apiKey string) (contentGenerator, error)) *clientFactory {
	return &clientFactory{build: build}
}

// get は apiKey に対応する送信口を返します。キーが前回と異なる場合は作り直します。
func (f *clientFactory) get(ctx context.Context, apiKey string) (contentGenerator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current != nil && f.key == apiKey {
		return f.current, nil
	}
	gen, err := f.build(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	f.key, f.current = apiKey, gen
	return gen, nil
}
