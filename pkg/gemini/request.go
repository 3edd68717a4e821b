package gemini

import (
	"google.golang.org/genai"
)

// GenerationSettings は全リクエストに共通の生成パラメータです。
// 値として扱い、呼び出し中に変更しないでください。
type GenerationSettings struct {
	Temperature    float32
	SafetySettings []*genai.SafetySetting
}

// harmCategories は安全性しきい値を設定する 4 つのカテゴリです。
var harmCategories = []genai.HarmCategory{
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
	genai.HarmCategoryHarassment,
}

// DefaultGenerationSettings は Temperature 0.9、全カテゴリ BLOCK_NONE の設定を返します。
func DefaultGenerationSettings() GenerationSettings {
	return newGenerationSettings(DefaultTemperature, genai.HarmBlockThresholdBlockNone)
}

func newGenerationSettings(temperature float32, threshold genai.HarmBlockThreshold) GenerationSettings {
	safety := make([]*genai.SafetySetting, 0, len(harmCategories))
	for _, c := range harmCategories {
		safety = append(safety, &genai.SafetySetting{Category: c, Threshold: threshold})
	}
	return GenerationSettings{Temperature: temperature, SafetySettings: safety}
}

// Request は送信直前の組み立て済みリクエストです。
type Request struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// BuildRequest はテキストと添付ファイルからリクエストを組み立てます。
// パーツはテキスト（空でない場合）、添付ファイル（ある場合）の順に並びます。
// どちらも無い場合は通信を行う前に ErrEmptyRequest を返します。
func BuildRequest(text string, asset *Asset, systemInstruction, model string, settings GenerationSettings) (*Request, error) {
	parts := make([]*genai.Part, 0, 2)
	if text != "" {
		parts = append(parts, &genai.Part{Text: text})
	}
	if asset != nil {
		parts = append(parts, asset.part())
	}
	if len(parts) == 0 {
		return nil, newLocalError(KindEmptyRequest, ErrEmptyRequest)
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(settings.Temperature),
		SafetySettings: settings.SafetySettings,
	}
	if systemInstruction != "" {
		genConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}

	return &Request{
		Model:    model,
		Contents: []*genai.Content{{Role: "user", Parts: parts}},
		Config:   genConfig,
	}, nil
}

// probeRequest は接続テスト用の最小リクエストを返します。生成パラメータは指定しません。
func probeRequest(model string) *Request {
	return &Request{
		Model:    model,
		Contents: []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: probePrompt}}}},
	}
}
