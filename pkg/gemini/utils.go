package gemini

import (
	"context"
	"strings"
	"time"

	"google.golang.org/genai"
)

// extractText は最初の候補からテキストパーツを連結して返します。思考パーツは含めません。
// あわせて候補の FinishReason を返します。
func extractText(resp *genai.GenerateContentResponse) (string, genai.FinishReason) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", ""
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", candidate.FinishReason
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String(), candidate.FinishReason
}

// emptyResponseError は通信成功後に内容が無かった場合のエラーを返します。
// FinishReason が正常（指定なし または STOP）以外であれば、ブロック理由として保持します。
func emptyResponseError(reason genai.FinishReason) *ClassifiedError {
	ce := newLocalError(KindEmptyResponse, ErrEmptyResponse)
	if reason != "" && reason != genai.FinishReasonUnspecified && reason != genai.FinishReasonStop {
		ce.Detail = string(reason)
	}
	return ce
}

func modelOrDefault(model string) string {
	if model == "" {
		return DefaultModel
	}
	return model
}

// withTimeout は timeout が正の場合のみ期限付きの context を返します。
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
