// auditor はクリエイティブ素材とメモを Gemini に送り、監査結果の Markdown を出力するコマンドです。
//
//	auditor probe  [-config path] [-model id] [-key key]
//	auditor audit  [-config path] [-model id] [-key key] [-notes text | -notes-file path] [-file asset] [-stream=false]
//	auditor models
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shouni/go-gemini-auditor/internal/config"
	"github.com/shouni/go-gemini-auditor/pkg/gemini"
)

var (
	errUsage       = errors.New("使い方: auditor <probe|audit|models> [options]")
	errProbeFailed = errors.New("接続テストに失敗しました")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "probe":
		return runProbe(ctx, args[1:], stdout, stderr)
	case "audit":
		return runAudit(ctx, args[1:], stdout, stderr)
	case "models":
		for _, m := range gemini.KnownModels {
			fmt.Fprintf(stdout, "%-24s %s: %s\n", m.ID, m.Name, m.Description)
		}
		return nil
	default:
		return fmt.Errorf("%w: 不明なサブコマンド %q", errUsage, args[0])
	}
}

// commonFlags は各サブコマンドで共通のオプションです。
type commonFlags struct {
	configPath string
	model      string
	apiKey     string
	language   string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "設定ファイルのパス")
	fs.StringVar(&c.model, "model", "", "モデル ID（省略時は設定値）")
	fs.StringVar(&c.apiKey, "key", "", "API キー（省略時は設定値・ビルド時のキー・環境変数の順）")
	fs.StringVar(&c.language, "lang", "", "メッセージの言語（ja, en, zh-TW）")
}

// setup は設定を読み込み、ロガーとクライアントを初期化します。
func (c *commonFlags) setup(stderr io.Writer) (*config.Config, *gemini.Client, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	if c.model != "" {
		cfg.Gemini.Model = c.model
	}
	if c.language != "" {
		cfg.Gemini.Language = c.language
	}

	slog.SetDefault(newLogger(cfg.Logger, stderr))

	client, err := gemini.NewClient(cfg.ClientConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("クライアントの初期化に失敗しました: %w", err)
	}
	return cfg, client, nil
}

func runProbe(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, client, err := common.setup(stderr)
	if err != nil {
		return err
	}

	res := client.ProbeConnection(ctx, cfg.Gemini.Model, common.apiKey)
	fmt.Fprintf(stdout, "[%s] %s\n", cfg.Gemini.Model, res.Message)
	if !res.Success {
		return errProbeFailed
	}
	return nil
}

func runAudit(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	notes := fs.String("notes", "", "担当者のメモ")
	notesFile := fs.String("notes-file", "", "メモを読み込むファイル（- で標準入力）")
	assetPath := fs.String("file", "", "添付する素材（画像・動画・PDF）")
	system := fs.String("system", "", "システム指示（省略時は設定値）")
	stream := fs.Bool("stream", true, "ストリーミングで逐次出力する")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, client, err := common.setup(stderr)
	if err != nil {
		return err
	}

	text, err := readNotes(*notes, *notesFile)
	if err != nil {
		return err
	}

	var asset *gemini.Asset
	if *assetPath != "" {
		if asset, err = gemini.LoadAsset(*assetPath); err != nil {
			return err
		}
		slog.DebugContext(ctx, "素材を読み込みました", "name", asset.Name, "mime", asset.MIMEType, "bytes", len(asset.Data))
	}

	prompt := gemini.Prompt{
		Text:              text,
		Asset:             asset,
		SystemInstruction: cfg.Audit.SystemPrompt,
		Model:             cfg.Gemini.Model,
		APIKey:            common.apiKey,
	}
	if *system != "" {
		prompt.SystemInstruction = *system
	}

	if !*stream {
		out, err := client.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, out)
		return nil
	}

	seq, err := client.GenerateStream(ctx, prompt)
	if err != nil {
		return err
	}
	for chunk, err := range seq {
		if err != nil {
			fmt.Fprintln(stdout)
			return err
		}
		fmt.Fprint(stdout, chunk)
	}
	fmt.Fprintln(stdout)
	return nil
}

func readNotes(inline, path string) (string, error) {
	switch path {
	case "":
		return inline, nil
	case "-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("標準入力の読み込みに失敗しました: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	default:
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("メモファイルの読み込みに失敗しました: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
}

func newLogger(cfg config.LoggerConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
