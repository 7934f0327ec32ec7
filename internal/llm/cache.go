package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/raine/kasko-bot/internal/vehicle"
	"github.com/rs/zerolog/log"
)

// VisionCache stores validated attributes by image hash.
type VisionCache interface {
	GetVisionCache(imageHash string) (*vehicle.Attributes, error)
	SetVisionCache(imageHash string, attrs *vehicle.Attributes) error
}

// CachedExtractor wraps an Extractor with a persistent cache so the same
// photo is only sent to the model once.
type CachedExtractor struct {
	inner Extractor
	cache VisionCache
}

// NewCachedExtractor creates a cached extractor.
func NewCachedExtractor(inner Extractor, cache VisionCache) *CachedExtractor {
	return &CachedExtractor{inner: inner, cache: cache}
}

func hashImage(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

// Extract implements the Extractor interface with caching. Cache errors are
// logged and never fail the extraction.
func (c *CachedExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*ExtractionResult, error) {
	hash := hashImage(image)

	// Check cache
	if c.cache != nil {
		cached, err := c.cache.GetVisionCache(hash)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check vision cache")
		} else if cached != nil {
			log.Debug().Str("hash", hash[:16]).Msg("vision cache hit")
			return &ExtractionResult{Attributes: cached, Cached: true}, nil
		}
	}

	// Call underlying extractor
	result, err := c.inner.Extract(ctx, image, mimeType)
	if err != nil {
		return nil, err
	}

	// Cache the result
	if c.cache != nil && result.Attributes != nil {
		if err := c.cache.SetVisionCache(hash, result.Attributes); err != nil {
			log.Warn().Err(err).Msg("failed to cache vision result")
		} else {
			log.Debug().Str("hash", hash[:16]).Msg("cached vision result")
		}
	}

	return result, nil
}
