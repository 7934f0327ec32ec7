package llm

import (
	"context"

	"github.com/raine/kasko-bot/internal/vehicle"
)

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// ExtractionResult contains validated attributes and usage information.
type ExtractionResult struct {
	Attributes *vehicle.Attributes
	Usage      Usage
	Cached     bool
}

// Extractor reads vehicle attributes from a registration document photo.
// Implementations return *ExtractionError on failure and never return
// attributes that have not passed ParseAttributes.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (*ExtractionResult, error)
}
