package domain

import "fmt"

// VideoConfig holds a brand's video generation settings. Nil budget or limit
// means unlimited.
type VideoConfig struct {
	BrandID          string
	Enabled          bool
	MonthlyBudgetUSD *float64
	DailyLimit       *int
	DefaultModel     string
	DefaultDuration  int
	MaxDuration      int
	IncludeAudio     bool
}

// BudgetDecision is the outcome of a pre-generation budget check.
type BudgetDecision struct {
	CanGenerate      bool
	WithinBudget     bool
	WithinDailyLimit bool
	BudgetRemaining  *float64
	Warning          string
}

// lowBudgetFraction is the share of the monthly budget below which a soft
// warning is emitted for the remaining balance after the operation.
const lowBudgetFraction = 0.2

// CheckBudgetLimits decides whether a generation costing estimatedCost may
// proceed for a brand, given its month-to-date spend and today's generation
// count. It is a pure function: both aggregates are computed by the store and
// passed in. At most one warning is produced; the checks are ordered so the
// most severe condition wins.
func CheckBudgetLimits(cfg VideoConfig, monthlyUsed float64, dailyCount int, estimatedCost float64) BudgetDecision {
	d := BudgetDecision{WithinBudget: true, WithinDailyLimit: true}

	if cfg.MonthlyBudgetUSD != nil {
		remaining := *cfg.MonthlyBudgetUSD - monthlyUsed
		d.BudgetRemaining = &remaining
		d.WithinBudget = estimatedCost <= remaining
	}
	if cfg.DailyLimit != nil {
		d.WithinDailyLimit = dailyCount < *cfg.DailyLimit
	}
	d.CanGenerate = cfg.Enabled && d.WithinBudget && d.WithinDailyLimit

	switch {
	case !d.WithinBudget:
		d.Warning = fmt.Sprintf("this generation ($%.2f) would exceed your monthly budget ($%.2f remaining)", estimatedCost, *d.BudgetRemaining)
	case !d.WithinDailyLimit:
		d.Warning = fmt.Sprintf("daily limit of %d videos reached", *cfg.DailyLimit)
	case cfg.MonthlyBudgetUSD != nil && *d.BudgetRemaining-estimatedCost < *cfg.MonthlyBudgetUSD*lowBudgetFraction:
		d.Warning = fmt.Sprintf("low budget: $%.2f will remain of your $%.2f monthly budget", *d.BudgetRemaining-estimatedCost, *cfg.MonthlyBudgetUSD)
	}
	return d
}
