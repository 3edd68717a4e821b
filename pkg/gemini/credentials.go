package gemini

import (
	"errors"
	"os"
)

// BuildAPIKey はビルド時に埋め込むフォールバック用の API キーです。
//
//	go build -ldflags "-X github.com/shouni/go-gemini-auditor/pkg/gemini.BuildAPIKey=..."
var BuildAPIKey string

// APIKeyEnvVars は参照する環境変数名を優先順に並べたものです。
var APIKeyEnvVars = []string{"GEMINI_API_KEY", "API_KEY"}

var ErrMissingCredential = errors.New("API キーが設定されていません。設定画面で入力するか、ビルド時のキーまたは環境変数 GEMINI_API_KEY を設定してください")

// CredentialResolver は API キーを複数の取得元から優先順に解決します。
type CredentialResolver struct {
	// Fallback はビルド時または設定ファイルで構成されたキーです。
	Fallback string
	// LookupEnv が nil の場合は os.LookupEnv が使われます。
	LookupEnv func(key string) (string, bool)
}

// Resolve は 呼び出し側のキー → Fallback → 環境変数 の順でキーを返します。
// explicit が空でなければ、他の取得元の値に関係なくそのまま返します。
func (r CredentialResolver) Resolve(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if r.Fallback != "" {
		return r.Fallback, nil
	}

	lookup := r.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, name := range APIKeyEnvVars {
		if v, ok := lookup(name); ok && v != "" {
			return v, nil
		}
	}
	return "", newLocalError(KindMissingCredential, ErrMissingCredential)
}

// ResolveAPIKey はビルド時のキーとプロセスの環境変数を使ってキーを解決します。
func ResolveAPIKey(explicit string) (string, error) {
	return CredentialResolver{Fallback: BuildAPIKey}.Resolve(explicit)
}
