package gemini

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// messageSet は 1 言語分のユーザー向けメッセージです。
// 書式指定子を含むものは、コメントに記した値が渡されます。
type messageSet struct {
	missingCredential string
	emptyRequest      string
	emptyResponse     string
	blocked           string // %s: FinishReason
	overloaded        string // %d: 試行回数
	overloadedNoRetry string
	quotaExceeded     string
	modelNotFound     string // %s: モデル ID
	modelNotFoundNoID string
	permissionDenied  string
	malformed         string
	unknown           string
	streamConsumed    string

	probeSuccess    string
	probeOverloaded string
	probeQuota      string
	probeNotFound   string
	probePermission string
	probeMalformed  string
	probeNoResponse string
}

var messagesJA = messageSet{
	missingCredential: ErrMissingCredential.Error(),
	emptyRequest:      ErrEmptyRequest.Error(),
	emptyResponse:     "モデルの応答が空でした。入力内容を変えるか、しばらくしてから再試行してください",
	blocked:           "生成がブロックされました（理由: %s）。入力内容を見直してください",
	overloaded:        "Google のサーバーが現在過負荷です (Overloaded)。\n自動で %d 回試行しましたが失敗しました。\n1 分ほど待ってから再試行するか、別のモデルに切り替えてください",
	overloadedNoRetry: "Google のサーバーが現在過負荷です (Overloaded)。\n1 分ほど待ってから再試行するか、別のモデルに切り替えてください",
	quotaExceeded:     "利用枠を使い切りました (Quota Exceeded / 429)。\nしばらく待つか、課金設定を確認してください",
	modelNotFound:     "モデル '%s' が見つかりません。\nAPI キーのプロジェクトがこのモデルを利用できるか、モデル ID が正しいか確認してください",
	modelNotFoundNoID: "モデルが見つかりません。\nAPI キーのプロジェクトがこのモデルを利用できるか、モデル ID が正しいか確認してください",
	permissionDenied:  "API キーの権限が不足しているか無効です (403)。キーを確認してください",
	malformed:         "リクエストが不正です (400)。API キーの形式や添付ファイルの種類を確認してください",
	unknown:           "不明なエラーが発生しました",
	streamConsumed:    ErrStreamConsumed.Error(),

	probeSuccess:    "接続に成功しました",
	probeOverloaded: "サーバーが混雑しています (503)。API キー自体は有効です",
	probeQuota:      "利用枠を使い切りました (429 Quota Exceeded)",
	probeNotFound:   "モデルが利用できません (404)",
	probePermission: "アクセスが拒否されました (403)",
	probeMalformed:  "API キーの形式が不正です (400)",
	probeNoResponse: "API に接続できましたが応答がありません",
}

var messagesEN = messageSet{
	missingCredential: "API key is missing. Enter one in settings, or configure the build-time key or the GEMINI_API_KEY environment variable",
	emptyRequest:      "Nothing to send: provide text or a file",
	emptyResponse:     "The model returned an empty response. Change the input or try again later",
	blocked:           "Generation was blocked (reason: %s). Please review the input",
	overloaded:        "Google's servers are currently overloaded.\nThe request was attempted %d times automatically and still failed.\nWait a minute and try again, or switch to another model",
	overloadedNoRetry: "Google's servers are currently overloaded.\nWait a minute and try again, or switch to another model",
	quotaExceeded:     "Quota exceeded (429).\nWait a while or check your billing settings",
	modelNotFound:     "Model '%s' was not found.\nCheck that your API key's project can access this model and that the model ID is correct",
	modelNotFoundNoID: "The model was not found.\nCheck that your API key's project can access this model and that the model ID is correct",
	permissionDenied:  "The API key lacks permission or is invalid (403). Please check the key",
	malformed:         "The request was rejected as malformed (400). Check the API key format and the attachment type",
	unknown:           "An unknown error occurred",
	streamConsumed:    "this stream has already been consumed",

	probeSuccess:    "Connection succeeded",
	probeOverloaded: "Server is busy (503), but the API key is valid",
	probeQuota:      "Quota exceeded (429)",
	probeNotFound:   "Model not available (404)",
	probePermission: "Access denied (403)",
	probeMalformed:  "Invalid API key format (400)",
	probeNoResponse: "Connected to the API but received no response",
}

var messagesZHTW = messageSet{
	missingCredential: "缺少 API Key。請在設定中輸入，或設定建置時的 Key 或環境變數 GEMINI_API_KEY",
	emptyRequest:      "沒有可送出的內容（需要文字或檔案）",
	emptyResponse:     "模型回應為空。請調整輸入內容或稍後再試",
	blocked:           "生成已被封鎖（原因：%s）。請檢查輸入內容",
	overloaded:        "Google 伺服器目前過載 (Overloaded)。\n系統已自動嘗試 %d 次但仍失敗。\n請休息 1 分鐘後再試，或切換其他模型",
	overloadedNoRetry: "Google 伺服器目前過載 (Overloaded)。\n請休息 1 分鐘後再試，或切換其他模型",
	quotaExceeded:     "額度耗盡 (Quota Exceeded / 429)。\n請稍後再試，或檢查帳單設定",
	modelNotFound:     "找不到模型 '%s'。\n請確認您的 API Key 專案是否有權限存取此模型，或模型 ID 是否正確",
	modelNotFoundNoID: "找不到模型。\n請確認您的 API Key 專案是否有權限存取此模型，或模型 ID 是否正確",
	permissionDenied:  "API Key 權限不足或無效 (403)。請檢查 Key 是否正確",
	malformed:         "請求格式無效 (400)。請檢查 API Key 格式與附件類型",
	unknown:           "發生未知錯誤",
	streamConsumed:    "此串流已被讀取過",

	probeSuccess:    "連線成功",
	probeOverloaded: "伺服器忙碌中 (503)，但 Key 是有效的",
	probeQuota:      "額度耗盡 (429 Quota Exceeded)",
	probeNotFound:   "模型未授權 (404)",
	probePermission: "存取被拒 (403)",
	probeMalformed:  "Key 格式無效 (400)",
	probeNoResponse: "API 連線建立但無回應",
}

var (
	supportedLanguages = []language.Tag{language.Japanese, language.English, language.TraditionalChinese}
	languageMessages   = []*messageSet{&messagesJA, &messagesEN, &messagesZHTW}
	languageMatcher    = language.NewMatcher(supportedLanguages)

	defaultCatalog = NewCatalog("")
)

// Catalog はエラーを分類し、指定言語のメッセージに変換します。
type Catalog struct {
	tag language.Tag
	m   *messageSet
}

// NewCatalog は lang（BCP 47 形式）に最も近い対応言語のカタログを返します。
// 空文字や未対応の言語の場合は日本語になります。
func NewCatalog(lang string) *Catalog {
	if lang == "" {
		return &Catalog{tag: supportedLanguages[0], m: languageMessages[0]}
	}
	_, idx := language.MatchStrings(languageMatcher, lang)
	return &Catalog{tag: supportedLanguages[idx], m: languageMessages[idx]}
}

// Language は選択された言語タグを返します。
func (c *Catalog) Language() language.Tag { return c.tag }

// Translate は err を分類し、model と attempts を反映したメッセージを付与して返します。
// err が nil の場合は nil を返します。
func (c *Catalog) Translate(err error, model string, attempts int) *ClassifiedError {
	ce := classify(err)
	if ce == nil {
		return nil
	}
	if model != "" {
		ce.Model = model
	}
	if attempts > 0 {
		ce.Attempts = attempts
	}
	ce.Message = c.render(ce)
	return ce
}

func (c *Catalog) render(ce *ClassifiedError) string {
	m := c.m
	switch ce.Kind {
	case KindMissingCredential:
		return m.missingCredential
	case KindEmptyRequest:
		return m.emptyRequest
	case KindEmptyResponse:
		if ce.Detail != "" {
			return fmt.Sprintf(m.blocked, ce.Detail)
		}
		return m.emptyResponse
	case KindOverloaded:
		// 再試行していない失敗（ストリームの途中など）では試行回数に触れない
		if ce.Attempts == 0 {
			return m.overloadedNoRetry
		}
		return fmt.Sprintf(m.overloaded, ce.Attempts)
	case KindQuotaExceeded:
		return m.quotaExceeded
	case KindModelNotFound:
		if ce.Model == "" {
			return m.modelNotFoundNoID
		}
		return fmt.Sprintf(m.modelNotFound, ce.Model)
	case KindPermissionDenied:
		return m.permissionDenied
	case KindMalformed:
		return m.malformed
	}

	if ce.Cause != nil {
		if errors.Is(ce.Cause, ErrStreamConsumed) {
			return m.streamConsumed
		}
		if s := ce.Cause.Error(); s != "" {
			return s
		}
	}
	return m.unknown
}

// probeMessage は接続テスト用の短いメッセージを返します。
func (c *Catalog) probeMessage(ce *ClassifiedError) string {
	m := c.m
	switch ce.Kind {
	case KindOverloaded:
		return m.probeOverloaded
	case KindQuotaExceeded:
		return m.probeQuota
	case KindModelNotFound:
		return m.probeNotFound
	case KindPermissionDenied:
		return m.probePermission
	case KindMalformed:
		return m.probeMalformed
	case KindEmptyResponse:
		return m.probeNoResponse
	}
	return c.render(ce)
}
