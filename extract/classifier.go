package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/digicard/backend/bulk"
)

const (
	envAPIKey = "ANTHROPIC_API_KEY"
	envModel  = "CLASSIFIER_MODEL"

	defaultModel = "claude-haiku-4-5-20251001"

	maxTokens = 1024
)

const classifyPrompt = `You are reading a scanned business card. Extract the contact
information into JSON with exactly these keys, each an array of strings
(empty array when the card has no such value):
"fn" (person names), "org" (business names), "title" (job titles),
"tel" (phone numbers), "email", "url" (websites), "adr" (postal
addresses), "cat" (a business category you infer), "notes" (anything
else notable on the card).
Respond with the JSON object only, no prose.`

// Classifier extracts contact fields from a card image using a vision
// model, seeded with whatever a local OCR pass could read.
type Classifier struct {
	client   anthropic.Client
	model    anthropic.Model
	provider Provider
}

// NewClassifier builds a classifier from the environment. The OCR provider
// may be nil when no local engine is available.
func NewClassifier(provider Provider) (*Classifier, error) {
	apiKey := strings.TrimSpace(os.Getenv(envAPIKey))
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set")
	}
	model := strings.TrimSpace(os.Getenv(envModel))
	if model == "" {
		model = defaultModel
	}
	if provider == nil {
		provider = Noop{}
	}
	return &Classifier{
		client:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:    anthropic.Model(model),
		provider: provider,
	}, nil
}

// Classify runs OCR plus the vision model over one card image. OCR and
// response-parsing problems degrade to emptier fields instead of failing
// the scan; only the model call itself can error.
func (c *Classifier) Classify(ctx context.Context, image []byte) (bulk.ContactFields, error) {
	ocrText, err := c.provider.Extract(ctx, image)
	if err != nil {
		slog.Warn("OCR failed, classifying from image only", "provider", c.provider.Name(), "error", err)
		ocrText = ""
	}

	prompt := classifyPrompt
	if ocrText != "" {
		prompt += "\n\nAn OCR pass over the same card produced:\n" + ocrText
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(http.DetectContentType(image), encodeBase64(image)),
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		return bulk.ContactFields{}, fmt.Errorf("classifying card: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	fields, err := ParseFields(text.String())
	if err != nil {
		slog.Warn("Classifier returned malformed fields", "error", err)
		return bulk.ContactFields{}, nil
	}
	return fields, nil
}

// Func adapts the classifier to the bulk drain signature.
func (c *Classifier) Func() bulk.ExtractFunc {
	return func(ctx context.Context, image []byte) (bulk.ContactFields, error) {
		return c.Classify(ctx, image)
	}
}

// ParseFields decodes the model's JSON into contact fields. Models wrap
// JSON in code fences and sometimes emit scalars where arrays were asked
// for, so both are tolerated; anything beyond that errors and the caller
// falls back to blank fields.
func ParseFields(text string) (bulk.ContactFields, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return bulk.ContactFields{}, fmt.Errorf("no JSON object in classifier output")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return bulk.ContactFields{}, fmt.Errorf("decoding classifier output: %w", err)
	}

	field := func(key string) []string {
		msg, ok := raw[key]
		if !ok {
			return nil
		}
		var list []string
		if err := json.Unmarshal(msg, &list); err == nil {
			return compact(list)
		}
		var single string
		if err := json.Unmarshal(msg, &single); err == nil && single != "" {
			return []string{single}
		}
		return nil
	}

	return bulk.ContactFields{
		Names:      field("fn"),
		Orgs:       field("org"),
		Titles:     field("title"),
		Phones:     field("tel"),
		Emails:     field("email"),
		Websites:   field("url"),
		Addresses:  field("adr"),
		Categories: field("cat"),
		Notes:      field("notes"),
	}, nil
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func compact(list []string) []string {
	out := list[:0]
	for _, v := range list {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
