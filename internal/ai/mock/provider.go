package mock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/chartwise/internal/ai"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	AnalyzeChartResponse *ai.ChartResult
	AnalyzeChartError    error

	// Call tracking for testing
	AnalyzeChartCalls int
}

var _ ai.AIProvider = (*Provider)(nil)

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// AnalyzeChart returns a canned read of a chart
func (p *Provider) AnalyzeChart(ctx context.Context, params ai.AnalyzeChartParams) (*ai.ChartResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.AnalyzeChartCalls++

	if p.AnalyzeChartError != nil {
		return nil, p.AnalyzeChartError
	}
	if p.AnalyzeChartResponse != nil {
		resp := *p.AnalyzeChartResponse
		return &resp, nil
	}

	if p.logger != nil {
		p.logger.Debug("mock chart analysis", "symbol", params.Symbol, "timeframe", params.Timeframe)
	}

	return &ai.ChartResult{
		Trend:      ai.TrendBullish,
		Signal:     ai.SignalBuy,
		Confidence: ai.ConfidenceMedium,
		Patterns: []ai.Pattern{
			{
				Name:        "ascending triangle",
				Description: "Flat resistance across the last three swing highs with rising lows beneath",
				Confidence:  ai.ConfidenceMedium,
			},
			{
				Name:        "bull flag",
				Description: "Tight downward channel after the impulse leg on the right edge",
				Confidence:  ai.ConfidenceLow,
			},
		},
		SupportLevels:    []float64{41250, 39800},
		ResistanceLevels: []float64{43600},
		Indicators: []ai.Indicator{
			{Name: "RSI(14)", Reading: "62, rising, not yet overbought"},
			{Name: "EMA(50)", Reading: "price holding above, slope positive"},
		},
		Summary:   "Higher lows are pressing into a flat ceiling near 43.6k. A daily close above it would confirm the triangle breakout.",
		RiskNotes: "A close back below 41.2k invalidates the setup.",
		Usage: ai.UsageInfo{
			Model:        "mock-ai-v1",
			InputTokens:  1250,
			OutputTokens: 420,
			CostCents:    1,
			Duration:     250 * time.Millisecond,
		},
	}, nil
}

// Calls returns how many analyses were requested.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.AnalyzeChartCalls
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AnalyzeChartCalls = 0
	p.AnalyzeChartResponse = nil
	p.AnalyzeChartError = nil
}
