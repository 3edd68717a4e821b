package gemini

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind は API 呼び出しで発生したエラーの分類です。
type Kind int

const (
	KindUnknown Kind = iota
	KindMissingCredential
	KindEmptyRequest
	KindEmptyResponse
	KindOverloaded
	KindQuotaExceeded
	KindModelNotFound
	KindPermissionDenied
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindMissingCredential:
		return "MissingCredential"
	case KindEmptyRequest:
		return "EmptyRequest"
	case KindEmptyResponse:
		return "EmptyResponse"
	case KindOverloaded:
		return "Overloaded"
	case KindQuotaExceeded:
		return "QuotaExceeded"
	case KindModelNotFound:
		return "ModelNotFound"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindMalformed:
		return "Malformed"
	default:
		return "Unknown"
	}
}

var (
	ErrEmptyRequest   = errors.New("送信する内容がありません（テキストまたはファイルが必要です）")
	ErrEmptyResponse  = errors.New("モデルの応答が空でした")
	ErrStreamConsumed = errors.New("このストリームは既に読み取られています")
)

// ClassifiedError は分類済みのエラーです。Message はそのまま利用者に表示できる文言です。
// Cause には元のエラーが保持されるため、errors.Is / errors.As で辿ることができます。
type ClassifiedError struct {
	Kind       Kind
	Message    string
	Retryable  bool
	StatusCode int
	// Model はエラーが発生した呼び出しのモデル ID です。
	Model string
	// Attempts は実際に行った試行回数です。
	Attempts int
	// Detail は FinishReason など、分類を補足する情報です。
	Detail string
	Cause  error
}

func (e *ClassifiedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil && e.Cause.Error() != "" {
		return e.Cause.Error()
	}
	return e.Kind.String()
}

func (e *ClassifiedError) Unwrap() error { return e.Cause }

// newLocalError は通信前の検証で発生したエラーを生成します。
func newLocalError(kind Kind, cause error) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Message: cause.Error(), Cause: cause}
}

// Classify はエラーを分類し、既定の言語で表示用メッセージを付与します。
func Classify(err error) *ClassifiedError {
	return defaultCatalog.Translate(err, "", 0)
}

// KindOf は err の分類のみを返します。nil の場合は KindUnknown です。
func KindOf(err error) Kind {
	if ce := classify(err); ce != nil {
		return ce.Kind
	}
	return KindUnknown
}

// isRetryable はリトライ制御に渡す判定関数です。過負荷のみを再試行します。
func isRetryable(err error) bool {
	ce := classify(err)
	return ce != nil && ce.Retryable
}

// classify はステータスコードとメッセージの部分一致で分類します。先に一致した規則が優先されます。
func classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		cp := *ce
		return &cp
	}

	code := statusCode(err)
	msg := strings.ToLower(err.Error())
	out := &ClassifiedError{StatusCode: code, Cause: err}

	switch {
	case code == http.StatusInternalServerError || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout ||
		strings.Contains(msg, "overloaded") || strings.Contains(msg, "service unavailable"):
		out.Kind = KindOverloaded
		out.Retryable = true
	case code == http.StatusTooManyRequests || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "quota"):
		out.Kind = KindQuotaExceeded
	case code == http.StatusNotFound || strings.Contains(msg, "not found"):
		out.Kind = KindModelNotFound
	case code == http.StatusForbidden || strings.Contains(msg, "permission"):
		out.Kind = KindPermissionDenied
	case code == http.StatusBadRequest || strings.Contains(msg, "invalid_argument"):
		out.Kind = KindMalformed
	default:
		out.Kind = KindUnknown
	}
	return out
}

// statusCode はエラーから HTTP ステータスコード相当の値を取り出します。取得できない場合は 0 です。
func statusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}

	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}

	if st, ok := status.FromError(err); ok {
		return httpStatusFromCode(st.Code())
	}
	return 0
}

// httpStatusFromCode は gRPC のステータスを対応する HTTP ステータスに変換します。
func httpStatusFromCode(c codes.Code) int {
	switch c {
	case codes.Internal:
		return http.StatusInternalServerError
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.NotFound:
		return http.StatusNotFound
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.InvalidArgument:
		return http.StatusBadRequest
	default:
		return 0
	}
}
