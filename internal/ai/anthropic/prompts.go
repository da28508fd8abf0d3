package anthropic

import (
	"fmt"
	"strings"

	"github.com/DukeRupert/chartwise/internal/ai"
)

// buildChartPrompt creates the instruction text sent alongside the chart image
func buildChartPrompt(params ai.AnalyzeChartParams) string {
	var b strings.Builder

	b.WriteString(`You are an experienced technical analyst reading a screenshot of a trading chart.

Describe what the chart shows:
1. **Trend** - the prevailing direction on the visible timeframe
2. **Patterns** - classic formations (triangles, flags, head and shoulders, double tops/bottoms, channels)
3. **Levels** - the most relevant support and resistance prices you can read from the axis
4. **Indicators** - readings of any indicators drawn on the chart (moving averages, RSI, MACD, volume)
5. **Signal** - the stance the chart suggests on its own: "buy", "sell" or "hold"

**Important Guidelines:**
- Only report what is visible in the image; do not invent prices you cannot read
- Use "low" confidence when the chart is cropped, blurry or missing an axis
- Keep the summary under 120 words
- Always include risk notes; this is not financial advice`)

	var context []string
	if params.Symbol != "" {
		context = append(context, "Symbol: "+params.Symbol)
	}
	if params.Timeframe != "" {
		context = append(context, "Timeframe: "+params.Timeframe)
	}
	if params.Notes != "" {
		context = append(context, "Trader notes: "+params.Notes)
	}
	if len(context) > 0 {
		b.WriteString(fmt.Sprintf("\n\n**Context from the trader:**\n%s", strings.Join(context, "\n")))
	}

	b.WriteString(`

**Response Format:**
Return your analysis as a JSON object with this exact structure:

{
  "trend": "bullish|bearish|sideways",
  "signal": "buy|sell|hold",
  "confidence": "high|medium|low",
  "patterns": [
    {"name": "Pattern name", "description": "Where it appears", "confidence": "high|medium|low"}
  ],
  "support_levels": [0.0],
  "resistance_levels": [0.0],
  "indicators": [
    {"name": "Indicator", "reading": "What it shows"}
  ],
  "summary": "Plain-language read of the chart",
  "risk_notes": "What would invalidate this read",
  "image_quality_notes": "Any limits caused by the screenshot"
}

**Important:** Return ONLY the JSON object, no additional text or explanation.`)

	return b.String()
}
