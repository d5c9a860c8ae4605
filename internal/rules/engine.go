// Package rules evaluates job candidates against a profile's rule set.
// Evaluation is pure: the same candidate and rule set always yield the same result.
package rules

import (
	"fmt"
	"strings"

	"github.com/jonathan/autoapply/internal/types"
)

const (
	// basePriority is the starting score for every eligible candidate.
	basePriority = 50
	// prioritizeBonus is added once per matched prioritize keyword.
	prioritizeBonus = 10
	// preferredCompanyBonus is added when the company is in the preferred list.
	preferredCompanyBonus = 15
	// excludePenalty forces ineligibility; exclude rules win over include rules.
	excludePenalty = -100
)

// Result is the outcome of evaluating one candidate against one rule set.
type Result struct {
	Eligible bool     `json:"eligible"`
	Priority int      `json:"priority"`
	Reasons  []string `json:"reasons"`
}

// Evaluate applies a rule set to a candidate. Matching is case-insensitive
// substring matching; exclude rules take precedence over include rules. Empty
// rule sets match every candidate at base priority.
func Evaluate(candidate *types.JobCandidate, rules *types.RuleSet) Result {
	res := Result{Priority: basePriority}
	text := strings.ToLower(candidate.Title + " " + candidate.Description + " " + strings.Join(candidate.Requirements, " ") + " " + strings.Join(candidate.Skills, " "))
	company := strings.ToLower(candidate.Company)
	location := strings.ToLower(candidate.Location)

	excluded := false
	if term, ok := matchAny(text, rules.ExcludeKeywords); ok {
		excluded = true
		res.Reasons = append(res.Reasons, fmt.Sprintf("excluded: keyword %q", term))
	}
	if term, ok := matchAny(company, rules.ExcludeCompanies); ok {
		excluded = true
		res.Reasons = append(res.Reasons, fmt.Sprintf("excluded: company %q", term))
	}
	if term, ok := matchAny(location, rules.ExcludeLocations); ok {
		excluded = true
		res.Reasons = append(res.Reasons, fmt.Sprintf("excluded: location %q", term))
	}

	eligible := true
	if len(rules.Keywords) > 0 {
		if term, ok := matchAny(text, rules.Keywords); ok {
			res.Reasons = append(res.Reasons, fmt.Sprintf("matched keyword %q", term))
		} else {
			eligible = false
			res.Reasons = append(res.Reasons, "no include keyword matched")
		}
	}
	if len(rules.Companies) > 0 {
		if term, ok := matchAny(company, rules.Companies); ok {
			res.Reasons = append(res.Reasons, fmt.Sprintf("matched company %q", term))
		} else {
			eligible = false
			res.Reasons = append(res.Reasons, "company not in include list")
		}
	}
	if len(rules.Locations) > 0 {
		if term, ok := matchAny(location, rules.Locations); ok {
			res.Reasons = append(res.Reasons, fmt.Sprintf("matched location %q", term))
		} else {
			eligible = false
			res.Reasons = append(res.Reasons, "location not in include list")
		}
	}

	if ok, reason := checkSalary(candidate, rules); !ok {
		eligible = false
		res.Reasons = append(res.Reasons, reason)
	}
	if ok, reason := checkExperience(candidate, rules); !ok {
		eligible = false
		res.Reasons = append(res.Reasons, reason)
	}

	for _, kw := range rules.PrioritizeKeywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			res.Priority += prioritizeBonus
			res.Reasons = append(res.Reasons, fmt.Sprintf("matched prioritize keyword %q", kw))
		}
	}
	if term, ok := matchAny(company, rules.PreferredCompanies); ok {
		res.Priority += preferredCompanyBonus
		res.Reasons = append(res.Reasons, fmt.Sprintf("preferred company %q", term))
	}

	if excluded {
		res.Priority += excludePenalty
		res.Eligible = false
		return res
	}

	res.Eligible = eligible
	return res
}

// matchAny reports whether text contains any of the terms, case-insensitively.
// Returns the first matching term.
func matchAny(text string, terms []string) (string, bool) {
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(term)) {
			return term, true
		}
	}
	return "", false
}

// checkSalary applies the salary-range constraint with inclusive bounds. A
// candidate missing a salary is non-matching for this constraint only, unless
// the rule is marked required.
func checkSalary(candidate *types.JobCandidate, rules *types.RuleSet) (bool, string) {
	if rules.SalaryRange == nil {
		return true, ""
	}
	if candidate.Salary == nil {
		if rules.SalaryRequired {
			return false, "salary missing and salary rule is mandatory"
		}
		return true, ""
	}
	want := rules.SalaryRange
	got := candidate.Salary
	// Inclusive overlap; a zero rule max means unbounded above.
	if got.Max < want.Min || (want.Max > 0 && got.Min > want.Max) {
		return false, fmt.Sprintf("salary %d-%d outside range %d-%d", got.Min, got.Max, want.Min, want.Max)
	}
	return true, ""
}

// checkExperience applies the experience-level constraint. A candidate missing
// the field is non-matching for this constraint only, unless the rule is
// marked required.
func checkExperience(candidate *types.JobCandidate, rules *types.RuleSet) (bool, string) {
	if len(rules.ExperienceLevels) == 0 {
		return true, ""
	}
	if candidate.ExperienceLevel == "" {
		if rules.ExperienceRequired {
			return false, "experience level missing and experience rule is mandatory"
		}
		return true, ""
	}
	got := strings.ToLower(candidate.ExperienceLevel)
	for _, level := range rules.ExperienceLevels {
		if got == strings.ToLower(level) {
			return true, ""
		}
	}
	return false, fmt.Sprintf("experience level %q not in allowed list", candidate.ExperienceLevel)
}
