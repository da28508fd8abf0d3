// Package ai defines the chart analysis provider abstraction.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AIProvider defines the interface for AI-powered trading chart analysis
type AIProvider interface {
	// AnalyzeChart reads a chart screenshot and returns a technical read of it
	AnalyzeChart(ctx context.Context, params AnalyzeChartParams) (*ChartResult, error)
}

// AnalyzeChartParams contains parameters for chart analysis
type AnalyzeChartParams struct {
	ImageData   []byte    // Raw image bytes
	ContentType string    // MIME type (e.g., "image/png")
	Symbol      string    // Optional ticker, e.g. "BTCUSD"
	Timeframe   string    // Optional timeframe, e.g. "4h"
	Notes       string    // Optional context provided by the trader
	AnalysisID  uuid.UUID // Analysis ID for tracking
	UserID      uuid.UUID // User ID for usage tracking
}

// ChartResult contains the complete analysis of a chart image
type ChartResult struct {
	Trend            Trend       `json:"trend"`
	Signal           Signal      `json:"signal"`
	Confidence       Confidence  `json:"confidence"`
	Patterns         []Pattern   `json:"patterns"`
	SupportLevels    []float64   `json:"support_levels"`
	ResistanceLevels []float64   `json:"resistance_levels"`
	Indicators       []Indicator `json:"indicators"`
	Summary          string      `json:"summary"`
	RiskNotes        string      `json:"risk_notes"`
	ImageQualityNote string      `json:"image_quality_notes,omitempty"`
	Usage            UsageInfo   `json:"-"`
}

// Pattern is a chart formation spotted in the image
type Pattern struct {
	Name        string     `json:"name"`        // e.g. "ascending triangle"
	Description string     `json:"description"` // where and how it shows
	Confidence  Confidence `json:"confidence"`
}

// Indicator is a reading of an indicator visible on the chart
type Indicator struct {
	Name    string `json:"name"`    // e.g. "RSI(14)"
	Reading string `json:"reading"` // e.g. "overbought near 74"
}

// UsageInfo tracks API usage for billing and monitoring
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	CostCents    int           // Estimated cost in cents
	Duration     time.Duration // Request duration
}

// Trend is the overall direction read from the chart
type Trend string

const (
	TrendBullish  Trend = "bullish"
	TrendBearish  Trend = "bearish"
	TrendSideways Trend = "sideways"
)

// Valid checks if the trend is valid
func (t Trend) Valid() bool {
	switch t {
	case TrendBullish, TrendBearish, TrendSideways:
		return true
	default:
		return false
	}
}

// Signal is the suggested stance. It is informational, not advice.
type Signal string

const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
	SignalHold Signal = "hold"
)

// Valid checks if the signal is valid
func (s Signal) Valid() bool {
	switch s {
	case SignalBuy, SignalSell, SignalHold:
		return true
	default:
		return false
	}
}

// Confidence levels for a read
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"   // 90%+ confident
	ConfidenceMedium Confidence = "medium" // 60-90% confident
	ConfidenceLow    Confidence = "low"    // 30-60% confident
)

// Valid checks if the confidence level is valid
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	default:
		return false
	}
}

// Normalize replaces unknown enum values with neutral defaults.
func (r *ChartResult) Normalize() {
	if !r.Trend.Valid() {
		r.Trend = TrendSideways
	}
	if !r.Signal.Valid() {
		r.Signal = SignalHold
	}
	if !r.Confidence.Valid() {
		r.Confidence = ConfidenceLow
	}
	for i := range r.Patterns {
		if !r.Patterns[i].Confidence.Valid() {
			r.Patterns[i].Confidence = ConfidenceMedium
		}
	}
	if r.Patterns == nil {
		r.Patterns = []Pattern{}
	}
	if r.Indicators == nil {
		r.Indicators = []Indicator{}
	}
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidImage indicates the image format or content is invalid
	EAIInvalidImage = errors.New("invalid image format or content")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
