package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.30 // $0.30 per 1M input tokens (text/image/video)
	geminiOutputPricePerMillion = 2.50 // $2.50 per 1M output tokens (including thinking)
)

const registrationPrompt = `Bu fotoğraf bir Türk araç ruhsatı (tescil belgesi) olmalı. Ruhsattaki bilgileri oku ve aracın güncel kasko değerini tahmin et.

Alanlar:
- documentDetected: Fotoğrafta okunabilir bir araç ruhsatı varsa true, yoksa false
- failureReason: documentDetected false ise kısa açıklama (örn. "fotoğraf bulanık"), değilse boş
- make: Markası (D.1), örn. "TOYOTA"
- model: Ticari adı (D.3), örn. "COROLLA"
- year: Model yılı (D.4), tam sayı
- fuelType: Yakıt cinsi (P.3), örn. "BENZİN", "DİZEL", "HİBRİT", "ELEKTRİK"
- chassisLast4: Şasi numarasının (E) son 4 karakteri, okunamıyorsa boş
- estimatedValueMin: Türk Lirası cinsinden tahmini en düşük kasko değeri
- estimatedValueMax: Türk Lirası cinsinden tahmini en yüksek kasko değeri
- confidenceScore: Okuma ve tahmine güvenin, 0 ile 1 arası
- description: Araç hakkında 1-2 cümlelik Türkçe açıklama

Bilgileri uydurma. Okuyamadığın alanı boş bırak.`

// attributesSchema constrains the model output to the fields ParseAttributes expects.
var attributesSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"documentDetected":  {Type: genai.TypeBoolean},
		"failureReason":     {Type: genai.TypeString},
		"make":              {Type: genai.TypeString},
		"model":             {Type: genai.TypeString},
		"year":              {Type: genai.TypeInteger},
		"fuelType":          {Type: genai.TypeString},
		"chassisLast4":      {Type: genai.TypeString},
		"estimatedValueMin": {Type: genai.TypeNumber},
		"estimatedValueMax": {Type: genai.TypeNumber},
		"confidenceScore":   {Type: genai.TypeNumber},
		"description":       {Type: genai.TypeString},
	},
	Required: []string{
		"documentDetected", "make", "model", "year", "fuelType",
		"estimatedValueMin", "estimatedValueMax", "confidenceScore", "description",
	},
	PropertyOrdering: []string{
		"documentDetected", "failureReason", "make", "model", "year", "fuelType", "chassisLast4",
		"estimatedValueMin", "estimatedValueMax", "confidenceScore", "description",
	},
}

// GeminiExtractor uses Google's Gemini API to read registration documents.
type GeminiExtractor struct {
	client *genai.Client
	model  string
	now    func() time.Time
}

// NewGeminiExtractor creates a new Gemini-based extractor. An empty model
// selects DefaultGeminiModel.
func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiExtractor{client: client, model: model, now: time.Now}, nil
}

// Extract implements the Extractor interface using Gemini.
func (g *GeminiExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*ExtractionResult, error) {
	if len(image) == 0 {
		return nil, declined("boş görsel")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(registrationPrompt),
			{InlineData: &genai.Blob{Data: image, MIMEType: mimeType}},
		}, genai.RoleUser),
	}

	temperature := float32(0.1)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   attributesSchema,
		Temperature:      &temperature,
	}

	start := time.Now()
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to generate content: %w", err))
	}

	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return nil, declined(string(result.PromptFeedback.BlockReason))
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, malformed(fmt.Errorf("no response from Gemini"))
	}

	text := result.Text()
	log.Debug().Str("response", text).Msg("registration extraction llm output")

	attrs, err := ParseAttributes(text, g.now())
	if err != nil {
		return nil, err
	}

	// Calculate usage and cost
	usage := Usage{}
	if result.UsageMetadata != nil {
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateGeminiCost(usage.InputTokens, usage.OutputTokens, geminiInputPricePerMillion, geminiOutputPricePerMillion)
	}

	log.Info().
		Str("model", g.model).
		Int("imageBytes", len(image)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Dur("took", time.Since(start)).
		Msg("registration extraction llm call")

	return &ExtractionResult{Attributes: attrs, Usage: usage}, nil
}

func calculateGeminiCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}
