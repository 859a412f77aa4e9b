package permit

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrMissingAPIKey reports that no OpenAI API key was configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

const extractionPrompt = `このPDFは輸入許可書です。以下の情報を抽出してJSON形式で返してください。

抽出する情報:
1. permit_number: 輸入許可書番号（例: YP5507887XX）
2. issue_date: 発行日（YYYY-MM-DD形式）
3. importer_name: 輸入者名
4. tracking_number: 追跡番号（例: YP5507887XX）
5. subtotal: 小計（数値のみ、カンマなし）
6. customs_duty: 関税額（数値のみ、カンマなし）
7. consumption_tax: 消費税額（数値のみ、カンマなし）
8. local_consumption_tax: 地方消費税額（数値のみ、カンマなし）
9. total_amount: 合計金額（数値のみ、カンマなし）
10. items: 輸入項目のリスト（各項目にitem_name, amount, quantity, unitを含む）

JSON形式で返してください。JSON以外のテキストは含めないでください。
例:
{
  "permit_number": "YP5507887XX",
  "issue_date": "2025-10-23",
  "importer_name": "新白岡輸入販売株式会社 和田篤様",
  "tracking_number": "YP5507887XX",
  "subtotal": 10000,
  "customs_duty": 5000,
  "consumption_tax": 1500,
  "local_consumption_tax": 150,
  "total_amount": 16650,
  "items": [
    {
      "item_name": "商品名1",
      "amount": 5000,
      "quantity": 1,
      "unit": "件"
    }
  ]
}
`

// OpenAIOracle answers extraction tasks through the OpenAI chat
// completion API with the PDF attached inline.
type OpenAIOracle struct {
	client *openai.Client
	model  string
}

// NewOpenAIOracle creates an oracle authenticated with OPENAI_API_KEY.
func NewOpenAIOracle() (*OpenAIOracle, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &OpenAIOracle{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4o,
	}, nil
}

// Extract implements Oracle.
func (o *OpenAIOracle) Extract(ctx context.Context, pdfData []byte) (string, error) {
	const op = "Extract"

	encoded := base64.StdEncoding.EncodeToString(pdfData)
	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: extractionPrompt,
		},
		{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: fmt.Sprintf("data:application/pdf;base64,%s", encoded),
			},
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: parts,
			},
		},
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s: chat completion request: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices in completion response", op)
	}

	return resp.Choices[0].Message.Content, nil
}
