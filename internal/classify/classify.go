// Package classify maps free-text dispatch call types to a category and priority.
package classify

import "regexp"

// Call categories, lowest priority number = most urgent.
const (
	CategoryViolent     = "violent"
	CategoryWeapons     = "weapons"
	CategoryProperty    = "property"
	CategoryTraffic     = "traffic"
	CategoryDisturbance = "disturbance"
	CategoryDrug        = "drug"
	CategoryMedical     = "medical"
	CategoryAdmin       = "admin"
	CategoryOther       = "other"
)

// DefaultPriority is assigned when no rule matches.
const DefaultPriority = 80

// rule pairs a compiled pattern with the classification it yields.
type rule struct {
	pattern  *regexp.Regexp
	category string
	priority int
}

// rules is evaluated top to bottom and the first match wins. The order is a
// correctness contract: a call type matching both a weapons term and a
// traffic term must classify by whichever rule appears first here.
var rules = []rule{
	{re(`homicide|shootings?|shots fired|stabbing|robbery|assault with a deadly weapon`), CategoryViolent, 10},
	{re(`brandishing|gun|weapon|armed|carjacking`), CategoryWeapons, 20},
	{re(`burglary|theft|larceny|shoplift|stolen|(auto|vehicle) theft`), CategoryProperty, 30},
	{re(`traffic collision|hit and run|dui|reckless|speed|(non.?)?injury`), CategoryTraffic, 40},
	{re(`disturbance|battery|domestic|fight|prowler|noise`), CategoryDisturbance, 50},
	{re(`drug|narcotic|controlled substance|possession`), CategoryDrug, 60},
	{re(`overdose|medical aid|ambulance|unconscious|cpr`), CategoryMedical, 70},
	{re(`vehicle stop|patrol check|information|follow up|admin|welfare check`), CategoryAdmin, 90},
}

// re compiles a case-insensitive, word-bounded alternation.
func re(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + expr + `)\b`)
}

// Classify returns the category and priority for a call-type string.
// Pure and deterministic; unrecognized input yields CategoryOther.
func Classify(callType string) (string, int) {
	for _, r := range rules {
		if r.pattern.MatchString(callType) {
			return r.category, r.priority
		}
	}
	return CategoryOther, DefaultPriority
}
