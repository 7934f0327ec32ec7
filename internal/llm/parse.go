package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/raine/kasko-bot/internal/vehicle"
	"github.com/rs/zerolog/log"
)

// flexNumber accepts a JSON number or a numeric string. The schema asks for
// numbers but the model occasionally quotes them.
type flexNumber struct {
	set   bool
	valid bool
	value float64
	raw   string
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	n.set = true
	n.raw = string(data)

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		n.value, n.valid = f, true
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n.raw = s
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			n.value, n.valid = f, true
		}
	}
	return nil
}

// rawAttributes mirrors the response schema. Required fields are pointers
// so that absence can be told apart from zero values.
type rawAttributes struct {
	DocumentDetected  *bool      `json:"documentDetected"`
	FailureReason     string     `json:"failureReason"`
	Make              *string    `json:"make"`
	Model             *string    `json:"model"`
	Year              flexNumber `json:"year"`
	FuelType          string     `json:"fuelType"`
	ChassisLast4      string     `json:"chassisLast4"`
	EstimatedValueMin flexNumber `json:"estimatedValueMin"`
	EstimatedValueMax flexNumber `json:"estimatedValueMax"`
	ConfidenceScore   flexNumber `json:"confidenceScore"`
	Description       string     `json:"description"`
}

// extractJSONObject extracts a JSON object from text that may contain markdown
// code blocks or other formatting. Returns the extracted JSON string or an error.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %s", text)
	}
	return text[start : end+1], nil
}

// ParseAttributes validates a raw model response into vehicle attributes.
// Every failure is an *ExtractionError.
func ParseAttributes(text string, now time.Time) (*vehicle.Attributes, error) {
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nil, malformed(err)
	}

	var raw rawAttributes
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, malformed(fmt.Errorf("failed to parse response JSON: %w (response: %s)", err, jsonStr))
	}

	if raw.DocumentDetected != nil && !*raw.DocumentDetected {
		return nil, declined(strings.TrimSpace(raw.FailureReason))
	}

	attrs := vehicle.Attributes{
		FuelType:    strings.TrimSpace(raw.FuelType),
		Description: strings.TrimSpace(raw.Description),
	}

	if raw.Make == nil || strings.TrimSpace(*raw.Make) == "" {
		return nil, invalid("Ruhsattan araç markası okunamadı")
	}
	attrs.Make = strings.TrimSpace(*raw.Make)

	if raw.Model == nil || strings.TrimSpace(*raw.Model) == "" {
		return nil, invalid("Ruhsattan araç modeli okunamadı")
	}
	attrs.Model = strings.TrimSpace(*raw.Model)

	if !raw.Year.set {
		return nil, invalid("Ruhsattan model yılı okunamadı")
	}
	if !raw.Year.valid || raw.Year.value != math.Trunc(raw.Year.value) {
		return nil, invalid(fmt.Sprintf("Ruhsattaki model yılı geçersiz: %s", raw.Year.raw))
	}
	// Range check before the int conversion so huge values cannot overflow.
	if raw.Year.value < vehicle.MinYear || raw.Year.value > float64(vehicle.MaxYear(now)) {
		return nil, invalid(fmt.Sprintf("Ruhsattaki model yılı geçersiz: %s (%d-%d arası olmalı)",
			raw.Year.raw, vehicle.MinYear, vehicle.MaxYear(now)))
	}
	attrs.Year = int(raw.Year.value)

	attrs.EstimatedValueMin, err = estimate(raw.EstimatedValueMin, "en düşük")
	if err != nil {
		return nil, err
	}
	attrs.EstimatedValueMax, err = estimate(raw.EstimatedValueMax, "en yüksek")
	if err != nil {
		return nil, err
	}
	if attrs.EstimatedValueMin > attrs.EstimatedValueMax {
		log.Warn().
			Float64("min", attrs.EstimatedValueMin).
			Float64("max", attrs.EstimatedValueMax).
			Msg("inverted estimate range from model, swapping")
		attrs.EstimatedValueMin, attrs.EstimatedValueMax = attrs.EstimatedValueMax, attrs.EstimatedValueMin
	}

	attrs.ConfidenceScore = clampConfidence(raw.ConfidenceScore)
	attrs.ChassisLast4 = normalizeChassis(raw.ChassisLast4)

	return &attrs, nil
}

func estimate(n flexNumber, label string) (float64, error) {
	if !n.set {
		return 0, invalid(fmt.Sprintf("Tahmini %s değer eksik", label))
	}
	if !n.valid || n.value < 0 {
		return 0, invalid(fmt.Sprintf("Tahmini %s değer geçersiz: %s", label, n.raw))
	}
	return n.value, nil
}

func clampConfidence(n flexNumber) float64 {
	if !n.set || !n.valid {
		log.Warn().Str("raw", n.raw).Msg("missing or invalid confidence score, using 0")
		return 0
	}
	switch {
	case n.value < 0:
		return 0
	case n.value > 1:
		return 1
	}
	return n.value
}

// normalizeChassis keeps the last four alphanumerics of the chassis number.
// Fewer than four readable characters means unknown.
func normalizeChassis(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) < 4 {
		return ""
	}
	return out[len(out)-4:]
}
