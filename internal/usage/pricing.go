// Package usage tracks priced external API calls for session-level
// observability. It is not a billing ledger; authoritative spend lives in the
// persisted video_usage records.
package usage

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ModelPricing carries either token prices (per million tokens) or per-second
// media prices, never both.
type ModelPricing struct {
	InputPerMTok   float64
	OutputPerMTok  float64
	VideoPerSecond float64
	AudioPerSecond float64
}

func (p ModelPricing) durationPriced() bool {
	return p.VideoPerSecond > 0 || p.AudioPerSecond > 0
}

// modelPricing is the static price table keyed by model identifier. Unknown
// models yield no cost at all, which keeps "not priced" distinguishable from
// "free".
var modelPricing = map[string]ModelPricing{
	"claude-sonnet-4-20250514": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-3-5-haiku-latest":  {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	"gemini-2.5-flash":         {InputPerMTok: 0.30, OutputPerMTok: 2.50},
	"gemini-2.5-pro":           {InputPerMTok: 1.25, OutputPerMTok: 10.00},

	"veo-2":      {VideoPerSecond: 0.35},
	"veo-3":      {VideoPerSecond: 0.40, AudioPerSecond: 0.10},
	"veo-3-fast": {VideoPerSecond: 0.15, AudioPerSecond: 0.05},
}

// PricingFor looks up the price table entry for a model.
func PricingFor(model string) (ModelPricing, bool) {
	p, ok := modelPricing[model]
	return p, ok
}

// CostForTokens prices a token-metered call. The second return is false for
// unknown or duration-priced models.
func CostForTokens(model string, inputTokens, outputTokens int) (float64, bool) {
	p, ok := modelPricing[model]
	if !ok || p.durationPriced() {
		return 0, false
	}
	cost := float64(inputTokens)/1e6*p.InputPerMTok + float64(outputTokens)/1e6*p.OutputPerMTok
	return cost, true
}

// CostForDuration prices a duration-metered call. Audio is priced
// independently and added only when requested.
func CostForDuration(model string, seconds int, includeAudio bool) (float64, bool) {
	p, ok := modelPricing[model]
	if !ok || !p.durationPriced() {
		return 0, false
	}
	cost := float64(seconds) * p.VideoPerSecond
	if includeAudio {
		cost += float64(seconds) * p.AudioPerSecond
	}
	return cost, true
}

// VideoEstimate breaks down the projected cost of one video generation.
type VideoEstimate struct {
	Model           string  `json:"model"`
	DurationSeconds int     `json:"duration"`
	IncludeAudio    bool    `json:"includeAudio"`
	VideoCost       float64 `json:"videoCost"`
	AudioCost       float64 `json:"audioCost"`
	TotalCost       float64 `json:"totalCost"`
	Formatted       string  `json:"formatted"`
}

// EstimateVideoCost prices a prospective video generation. Unknown models
// estimate to zero with an empty formatted string.
func EstimateVideoCost(model string, seconds int, includeAudio bool) VideoEstimate {
	est := VideoEstimate{Model: model, DurationSeconds: seconds, IncludeAudio: includeAudio}
	p, ok := modelPricing[model]
	if !ok || !p.durationPriced() {
		return est
	}
	est.VideoCost = float64(seconds) * p.VideoPerSecond
	if includeAudio {
		est.AudioCost = float64(seconds) * p.AudioPerSecond
	}
	est.TotalCost = est.VideoCost + est.AudioCost
	est.Formatted = FormatUSD(est.TotalCost)
	return est
}

var usdPrinter = message.NewPrinter(language.English)

// FormatUSD renders a dollar amount for display, e.g. "$1,234.56".
func FormatUSD(v float64) string {
	return usdPrinter.Sprintf("$%.2f", v)
}
