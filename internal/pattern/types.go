package pattern

import (
	"regexp"
	"time"
)

// Source identifies how a pattern entered the catalog.
type Source string

const (
	// SourceManual is for built-in and default patterns.
	SourceManual Source = "manual"
	// SourceUser is for patterns added by users.
	SourceUser Source = "user"
	// SourceLearning is for patterns promoted from discovered candidates.
	SourceLearning Source = "learning"
)

// idPattern constrains pattern identifiers to a filesystem- and
// metric-label-safe alphabet.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,127}$`)

// Pattern is a single failure-detection rule.
type Pattern struct {
	// ID is the unique identifier for this pattern.
	ID string `json:"id"`

	// Name is a short human-readable name.
	Name string `json:"name"`

	// Category groups related failures (permission, network, build, ...).
	Category string `json:"category"`

	// RegexPatterns are the expressions matched against log text, in order.
	RegexPatterns []string `json:"regex_patterns"`

	// Keywords pre-filter candidate logs before regex matching.
	Keywords []string `json:"keywords"`

	// ContextRequirements are tags a caller may use to restrict matches.
	ContextRequirements []string `json:"context_requirements,omitempty"`

	// ConfidenceBase is the prior confidence for a raw match (0.0 - 1.0).
	ConfidenceBase float64 `json:"confidence_base"`

	// SuccessRate is the feedback-adjusted hit rate (0.0 - 1.0, floored
	// at 0.1 after adjustment).
	SuccessRate float64 `json:"success_rate"`

	// CreatedAt is when this pattern was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when this pattern was last modified.
	UpdatedAt time.Time `json:"updated_at"`

	// UserDefined marks patterns from the user partition.
	UserDefined bool `json:"user_defined"`

	// AutoGenerated marks patterns produced by the learning engine.
	AutoGenerated bool `json:"auto_generated"`

	// Source identifies the origin of this pattern.
	Source Source `json:"source"`

	// OccurrenceCount is how many times this pattern has matched.
	OccurrenceCount int64 `json:"occurrence_count"`
}

// Clone returns a deep copy so callers can hold a pattern across store
// mutations.
func (p *Pattern) Clone() *Pattern {
	if p == nil {
		return nil
	}
	cp := *p
	cp.RegexPatterns = append([]string(nil), p.RegexPatterns...)
	cp.Keywords = append([]string(nil), p.Keywords...)
	cp.ContextRequirements = append([]string(nil), p.ContextRequirements...)
	return &cp
}

// Validate checks the structural invariants enforced at Add/Update time.
func (p *Pattern) Validate() error {
	if p == nil {
		return &ValidationError{Field: "pattern", Reason: "pattern is nil"}
	}
	if !idPattern.MatchString(p.ID) {
		return &ValidationError{Field: "id", Reason: "must be 1-128 chars of [a-zA-Z0-9_.-], starting alphanumeric"}
	}
	if p.Name == "" {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}
	if len(p.RegexPatterns) == 0 && len(p.Keywords) == 0 {
		return &ValidationError{Field: "regex_patterns", Reason: "at least one regex pattern or keyword is required"}
	}
	for _, src := range p.RegexPatterns {
		if _, err := regexp.Compile(src); err != nil {
			return &ValidationError{Field: "regex_patterns", Reason: "invalid regex " + src + ": " + err.Error()}
		}
	}
	if p.ConfidenceBase < 0 || p.ConfidenceBase > 1 {
		return &ValidationError{Field: "confidence_base", Reason: "must be in [0, 1]"}
	}
	if p.SuccessRate < 0 || p.SuccessRate > 1 {
		return &ValidationError{Field: "success_rate", Reason: "must be in [0, 1]"}
	}
	return nil
}
