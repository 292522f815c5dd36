package calendar

import (
	"fmt"
	"time"
)

const (
	minInterval = 1
	maxInterval = 999
	minCount    = 1
	maxCount    = 999
)

// ValidationResult accumulates every violated check; it never carries a
// partial list because one check failed early.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateRule checks a rule against the current time. Expansion and
// pattern saves must be gated on a valid result; the expander itself
// does not re-validate.
func ValidateRule(rule RecurrenceRule) ValidationResult {
	return ValidateRuleAt(rule, time.Now())
}

// ValidateRuleAt is ValidateRule with an injected clock for the
// end-date check.
func ValidateRuleAt(rule RecurrenceRule, now time.Time) ValidationResult {
	var errs []string

	switch rule.Frequency {
	case Daily, Weekly, Monthly, Yearly:
	default:
		errs = append(errs, fmt.Sprintf("frequency must be one of daily, weekly, monthly, yearly; got %q", rule.Frequency))
	}

	if rule.Interval < minInterval || rule.Interval > maxInterval {
		errs = append(errs, fmt.Sprintf("interval must be between %d and %d; got %d", minInterval, maxInterval, rule.Interval))
	}

	if rule.Count != nil && (*rule.Count < minCount || *rule.Count > maxCount) {
		errs = append(errs, fmt.Sprintf("count must be between %d and %d; got %d", minCount, maxCount, *rule.Count))
	}

	if rule.DayOfMonth != nil && (*rule.DayOfMonth < 1 || *rule.DayOfMonth > 31) {
		errs = append(errs, fmt.Sprintf("day of month must be between 1 and 31; got %d", *rule.DayOfMonth))
	}

	// A past end date is structurally fine but useless to save; the
	// check guards the editing flow rather than the data model.
	if rule.EndDate != nil && !rule.EndDate.After(now) {
		errs = append(errs, fmt.Sprintf("end date must be in the future; got %s", rule.EndDate.Format("2006-01-02")))
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
