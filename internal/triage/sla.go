package triage

import (
	"fmt"
	"time"
)

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * minutesPerHour

	// Warning fires at three quarters of the budget.
	warningNumerator   = 3
	warningDenominator = 4

	labelMinLevel = 4
)

// Response budgets in minutes, keyed by urgency level.
var slaBudgets = map[int]int{
	5: 5,
	4: 120,
	3: 480,
	2: 1440,
	1: 2880,
}

const defaultBudgetLevel = 3

type SLAStatus struct {
	ElapsedMinutes int
	BudgetMinutes  int
	Breached       bool
	Warning        bool
	Elapsed        string
	// Label is empty below level 4.
	Label string
}

// SLABudget returns the response budget in minutes; unknown levels get the
// standard (level 3) budget.
func SLABudget(level int) int {
	budget, ok := slaBudgets[level]
	if !ok {
		return slaBudgets[defaultBudgetLevel]
	}

	return budget
}

func IsBreached(elapsedMinutes, level int) bool {
	return elapsedMinutes > SLABudget(level)
}

// IsWarning compares in integer arithmetic: M > 0.75*B  <=>  4M > 3B.
func IsWarning(elapsedMinutes, level int) bool {
	return warningDenominator*elapsedMinutes > warningNumerator*SLABudget(level)
}

func ElapsedMinutes(now, createdAt time.Time) int {
	if createdAt.IsZero() || !now.After(createdAt) {
		return 0
	}

	return int(now.Sub(createdAt) / time.Minute)
}

func EvaluateSLA(now, createdAt time.Time, level int) SLAStatus {
	elapsed := ElapsedMinutes(now, createdAt)

	return SLAStatus{
		ElapsedMinutes: elapsed,
		BudgetMinutes:  SLABudget(level),
		Breached:       IsBreached(elapsed, level),
		Warning:        IsWarning(elapsed, level),
		Elapsed:        FormatElapsed(elapsed),
		Label:          SLALabel(level),
	}
}

// FormatElapsed renders "Xm" under an hour, "Xh Ym" under a day and "Xd Yh" beyond.
func FormatElapsed(minutes int) string {
	switch {
	case minutes < minutesPerHour:
		return fmt.Sprintf("%dm", minutes)
	case minutes < minutesPerDay:
		return fmt.Sprintf("%dh %dm", minutes/minutesPerHour, minutes%minutesPerHour)
	default:
		return fmt.Sprintf("%dd %dh", minutes/minutesPerDay, (minutes%minutesPerDay)/minutesPerHour)
	}
}

func SLALabel(level int) string {
	if level < labelMinLevel {
		return ""
	}

	budget := SLABudget(level)
	if budget < minutesPerHour {
		return fmt.Sprintf("SLA: %dm", budget)
	}

	return fmt.Sprintf("SLA: %dh", budget/minutesPerHour)
}
