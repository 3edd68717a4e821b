package gemini

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"
)

// --- テスト用のダブル ---

// fakeTimer は待機せずに即座に発火し、待機要求の回数と時間を記録します。
type fakeTimer struct {
	mu     sync.Mutex
	starts []time.Duration
	c      chan time.Time
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 1)}
}

func (t *fakeTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.starts = append(t.starts, d)
	t.mu.Unlock()
	t.c <- time.Now()
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func (t *fakeTimer) sleeps() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.starts...)
}

// fakeResult は GenerateContent 1 回分の結果です。
type fakeResult struct {
	text   string
	reason genai.FinishReason
	err    error
}

// streamItem はストリームが返す 1 要素です。
type streamItem struct {
	text string
	err  error
}

// fakeGenerator は呼び出し回数を記録し、あらかじめ用意した結果を順に返します。
// 用意した結果を使い切った後は最後の結果を繰り返します。
type fakeGenerator struct {
	mu          sync.Mutex
	results     []fakeResult
	streams     [][]streamItem
	calls       int
	streamCalls int
	lastConfig  *genai.GenerateContentConfig
	lastContent []*genai.Content
	closed      int
	// deadlines は期限付きの context で呼び出された回数です。
	deadlines int
}

func (g *fakeGenerator) recordDeadline(ctx context.Context) {
	if _, ok := ctx.Deadline(); ok {
		g.deadlines++
	}
}

func (g *fakeGenerator) GenerateContent(ctx context.Context, _ string, contents []*genai.Content,
	config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.recordDeadline(ctx)
	idx := min(g.calls, len(g.results)-1)
	g.calls++
	g.lastConfig = config
	g.lastContent = contents

	r := g.results[idx]
	if r.err != nil {
		return nil, r.err
	}
	return responseWithText(r.text, r.reason), nil
}

func (g *fakeGenerator) GenerateContentStream(ctx context.Context, _ string, _ []*genai.Content,
	_ *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	g.mu.Lock()
	g.recordDeadline(ctx)
	idx := min(g.streamCalls, len(g.streams)-1)
	g.streamCalls++
	items := g.streams[idx]
	g.mu.Unlock()

	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		defer func() {
			g.mu.Lock()
			g.closed++
			g.mu.Unlock()
		}()
		for _, it := range items {
			if it.err != nil {
				yield(nil, it.err)
				return
			}
			if !yield(responseWithText(it.text, ""), nil) {
				return
			}
		}
	}
}

func (g *fakeGenerator) counts() (calls, streamCalls, closed int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls, g.streamCalls, g.closed
}

func (g *fakeGenerator) deadlineCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deadlines
}

// blockingGenerator は context が終了するまで応答しない送信口です。
type blockingGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *blockingGenerator) GenerateContent(ctx context.Context, _ string, _ []*genai.Content,
	_ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

func (g *blockingGenerator) GenerateContentStream(ctx context.Context, _ string, _ []*genai.Content,
	_ *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		<-ctx.Done()
		yield(nil, ctx.Err())
	}
}

func (g *blockingGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func responseWithText(text string, reason genai.FinishReason) *genai.GenerateContentResponse {
	candidate := &genai.Candidate{FinishReason: reason}
	if text != "" {
		candidate.Content = &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{candidate}}
}

func apiError(code int, msg string) error {
	return genai.APIError{Code: code, Message: msg}
}

// newTestClient は gen と fakeTimer を組み込んだクライアントを作成します。
// builds には SDK クライアントの生成回数が記録されます。
func newTestClient(t *testing.T, gen contentGenerator, cfg Config) (*Client, *fakeTimer, *int) {
	t.Helper()

	if cfg.FallbackAPIKey == "" {
		cfg.FallbackAPIKey = "test-key"
	}
	c, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("クライアントの初期化に失敗しました: %v", err)
	}

	builds := 0
	c.factory = newClientFactory(func(context.Context, string) (contentGenerator, error) {
		builds++
		return gen, nil
	})
	timer := newFakeTimer()
	c.newTimer = func() backoff.Timer { return timer }
	return c, timer, &builds
}

// collect はストリームを最後まで読み、受け取った断片と最後のエラーを返します。
func collect(seq iter.Seq2[string, error]) ([]string, error) {
	var chunks []string
	for chunk, err := range seq {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func float32Ptr(f float32) *float32 { return &f }
