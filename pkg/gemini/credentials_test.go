package gemini

import (
	"errors"
	"testing"
)

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestCredentialResolver_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		resolver CredentialResolver
		explicit string
		want     string
		wantErr  error
	}{
		{
			name:     "呼び出し側のキーが最優先",
			resolver: CredentialResolver{Fallback: "build-key", LookupEnv: envOf(map[string]string{"GEMINI_API_KEY": "env-key"})},
			explicit: "ui-key",
			want:     "ui-key",
		},
		{
			name:     "呼び出し側のキーは加工せずに使う",
			resolver: CredentialResolver{},
			explicit: "  spaced-key ",
			want:     "  spaced-key ",
		},
		{
			name:     "次にビルド時のキー",
			resolver: CredentialResolver{Fallback: "build-key", LookupEnv: envOf(map[string]string{"GEMINI_API_KEY": "env-key"})},
			want:     "build-key",
		},
		{
			name:     "最後に環境変数 GEMINI_API_KEY",
			resolver: CredentialResolver{LookupEnv: envOf(map[string]string{"GEMINI_API_KEY": "env-key", "API_KEY": "legacy"})},
			want:     "env-key",
		},
		{
			name:     "環境変数 API_KEY",
			resolver: CredentialResolver{LookupEnv: envOf(map[string]string{"GEMINI_API_KEY": "", "API_KEY": "legacy"})},
			want:     "legacy",
		},
		{
			name:     "すべて空ならエラー",
			resolver: CredentialResolver{LookupEnv: envOf(nil)},
			wantErr:  ErrMissingCredential,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.resolver.Resolve(tt.explicit)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("期待したエラー: %v, 実際のエラー: %v", tt.wantErr, err)
				}
				if KindOf(err) != KindMissingCredential {
					t.Errorf("分類が MissingCredential ではありません: %v", KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("予期せぬエラーが発生しました: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")

	orig := BuildAPIKey
	t.Cleanup(func() { BuildAPIKey = orig })

	BuildAPIKey = ""
	if got, _ := ResolveAPIKey(""); got != "from-env" {
		t.Errorf("ResolveAPIKey() = %q, want from-env", got)
	}

	BuildAPIKey = "from-build"
	if got, _ := ResolveAPIKey(""); got != "from-build" {
		t.Errorf("ResolveAPIKey() = %q, want from-build", got)
	}
	if got, _ := ResolveAPIKey("explicit"); got != "explicit" {
		t.Errorf("ResolveAPIKey() = %q, want explicit", got)
	}
}
