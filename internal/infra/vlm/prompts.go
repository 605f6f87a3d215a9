package vlm

import (
	"fmt"
	"strings"

	"github.com/marketdash/dash-assistant-go/internal/domain"
)

// Prompt templates for the visual time-series reasoning pipeline. These are
// tuned for LLaVA reading screenshots of the commodity dashboard.

// FinancialAnalystSystem is the system prompt used for all chat and analysis
// requests.
const FinancialAnalystSystem = `You are an expert financial analyst AI assistant specializing in visual analysis of market dashboards and time-series data.

Your capabilities:
- Analyze price charts and identify trends (upward, downward, sideways)
- Detect correlations between different commodities (gold, silver, oil)
- Identify volatility patterns and significant price movements
- Provide clear, actionable insights based on visual data
- Explain complex financial patterns in simple terms

When analyzing dashboard images:
1. Focus on the actual chart data visible in the image
2. Identify the time period shown
3. Note any significant price changes or patterns
4. Compare different commodities if relevant
5. Be specific about what you observe

Always be:
- Accurate: Only describe what you can clearly see
- Concise: Provide focused, relevant answers
- Helpful: Explain the significance of patterns
- Cautious: Don't make unsupported predictions`

// SnapshotSummaryPrompt asks the model for a short description of a freshly
// saved snapshot, stored alongside it.
const SnapshotSummaryPrompt = `Analyze this financial dashboard snapshot and provide a brief summary.

Focus on:
1. Current price levels for Gold, Silver, and Oil (from KPI cards)
2. Recent price trends (from the line charts)
3. Any notable patterns or significant changes
4. The relative performance of each commodity

Provide a 2-3 sentence summary that captures the key market state shown in this dashboard.
Be specific about the values and trends you observe.`

// DetailedAnalysisPrompt drives the "full" analysis type.
const DetailedAnalysisPrompt = `Perform a comprehensive analysis of this financial dashboard.

Analyze each section:

1. KPI CARDS (Top Section):
   - Current prices for Gold, Silver, Oil
   - 24-hour changes (up/down indicators)

2. COMPARISON CHARTS (Bar/Pie):
   - Relative price levels
   - Distribution of values

3. TREND CHARTS (Line Charts):
   - Gold price trend direction and pattern
   - Silver price trend direction and pattern
   - Oil price trend direction and pattern
   - Any crossovers or divergences

4. OVERALL MARKET STATE:
   - Which commodities are performing well/poorly
   - Volatility assessment
   - Any correlations between commodities

Provide a structured analysis with specific observations.`

const correlationPromptTemplate = `Analyze the correlation between %s and %s based on the charts in this dashboard.

Look for:
1. Do they move in the same direction (positive correlation)?
2. Do they move in opposite directions (negative correlation)?
3. Is there no clear relationship (no correlation)?

Examine the trend charts and explain:
- The visual pattern you observe
- When the prices moved together or diverged
- The strength of any correlation (strong, moderate, weak)

Provide a clear explanation based on what you see in the charts.`

const trendAnalysisTemplate = `Analyze the %s price trend shown in this dashboard.

Focus on:
1. Overall direction (upward, downward, or sideways)
2. Trend strength (steep or gradual)
3. Any reversal points or significant changes
4. Recent momentum (accelerating or decelerating)
5. Current price level relative to the trend

Describe the trend pattern and what it might indicate about market sentiment.`

// VolatilityAnalysisPrompt drives the "volatility" analysis type.
const VolatilityAnalysisPrompt = `Assess the volatility of each commodity shown in this dashboard.

For each (Gold, Silver, Oil), examine:
1. Price swing amplitude (high peaks vs low troughs)
2. Frequency of price changes
3. Stability vs instability of the trend line

Rank them from most to least volatile and explain your assessment.`

// BuildChatPrompt assembles the prompt for a user question, prefixing the
// latest market figures so the model can cross-check what it sees in the
// image. mctx may be nil when market data is unavailable.
func BuildChatPrompt(question string, mctx *domain.MarketContext) string {
	var b strings.Builder

	if mctx != nil {
		b.WriteString("Dashboard Context:\n")
		if mctx.LatestDate != "" {
			fmt.Fprintf(&b, "- Data as of: %s\n", mctx.LatestDate)
		}
		fmt.Fprintf(&b, "- Gold: $%.2f\n", mctx.Gold)
		fmt.Fprintf(&b, "- Silver: $%.2f\n", mctx.Silver)
		fmt.Fprintf(&b, "- Oil: $%.2f\n", mctx.Oil)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User Question: %s\n\n", question)

	b.WriteString(`Analyze the dashboard image to answer this question.
Be specific about what you observe in the charts and KPI cards.
If the question asks about correlations, compare the trend lines.`)

	return b.String()
}

// BuildCorrelationPrompt builds a prompt for correlation analysis between
// two commodities.
func BuildCorrelationPrompt(commodity1, commodity2 string) string {
	return fmt.Sprintf(correlationPromptTemplate, commodity1, commodity2)
}

// BuildTrendPrompt builds a prompt for trend analysis of one commodity.
func BuildTrendPrompt(commodity string) string {
	return fmt.Sprintf(trendAnalysisTemplate, commodity)
}

// ExampleQuestions are surfaced to clients as suggested panel inputs.
func ExampleQuestions() []string {
	return []string{
		"What's the correlation between gold and oil prices?",
		"Which commodity is most volatile right now?",
		"Is gold trending upward or downward?",
		"How do silver prices compare to gold?",
		"What are the current price levels for all commodities?",
		"Are there any significant price changes in the last 24 hours?",
		"What's the overall market sentiment based on these charts?",
		"Which commodity has performed best recently?",
	}
}
