// Package domain contains core business types and interfaces.
//
// This file defines the ChartAnalysis type, the product's metered action.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxChartSize is the largest chart upload accepted, in bytes.
const MaxChartSize = 10 << 20

// AllowedChartTypes lists the chart image formats accepted for analysis.
var AllowedChartTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// IsAllowedChartType returns true if the content type can be analyzed.
func IsAllowedChartType(contentType string) bool {
	return AllowedChartTypes[strings.ToLower(strings.TrimSpace(contentType))]
}

// ChartAnalysis is one completed analysis of an uploaded chart.
type ChartAnalysis struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"-"`
	ImageKey     string          `json:"-"`
	ThumbnailKey string          `json:"-"`
	Symbol       string          `json:"symbol,omitempty"`
	Timeframe    string          `json:"timeframe,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"` // provider output, nil if none was stored
	Model        string          `json:"model"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	CreatedAt    time.Time       `json:"created_at"`

	// Populated by the service for responses, not stored.
	ImageURL     string `json:"image_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// AnalyzeChartParams contains the parameters for analyzing an uploaded chart.
type AnalyzeChartParams struct {
	UserID      uuid.UUID
	Filename    string
	ContentType string
	Data        []byte
	Symbol      string
	Timeframe   string
	Notes       string
}

// AnalysisOutcome is what the analysis endpoint returns: the stored
// analysis plus the entitlement left after it was recorded.
type AnalysisOutcome struct {
	Analysis *ChartAnalysis `json:"analysis"`
	Usage    Entitlement    `json:"usage"`
}
