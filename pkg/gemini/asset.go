package gemini

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/genai"
)

var ErrEmptyAsset = errors.New("添付ファイルが空です")

// Asset はリクエストにインラインで埋め込むファイルです。生成後は変更しないでください。
type Asset struct {
	MIMEType string
	Data     []byte
	Name     string
}

// NewAssetFromBase64 は Base64 文字列（data URL の本体部分）から Asset を作成します。
func NewAssetFromBase64(name, mimeType, data string) (*Asset, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("添付ファイル %q の Base64 デコードに失敗しました: %w", name, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyAsset, name)
	}
	return &Asset{MIMEType: mimeType, Data: raw, Name: name}, nil
}

// LoadAsset はファイルを読み込み、内容から MIME タイプを判定して Asset を作成します。
func LoadAsset(path string) (*Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("添付ファイルの読み込みに失敗しました: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyAsset, path)
	}
	return &Asset{
		MIMEType: detectMIMEType(data),
		Data:     data,
		Name:     filepath.Base(path),
	}, nil
}

// Base64 は UI などに渡すための Base64 表現を返します。
func (a *Asset) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

func (a *Asset) part() *genai.Part {
	return &genai.Part{InlineData: &genai.Blob{MIMEType: a.MIMEType, Data: a.Data}}
}

// detectMIMEType は内容から MIME タイプを判定し、charset などのパラメータを取り除きます。
func detectMIMEType(data []byte) string {
	detected := mimetype.Detect(data).String()
	mediaType, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return detected
	}
	return mediaType
}
