package periodicity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/occhealth/pcmso-backend/internal/platform/apierr"
)

type RuleKind string

const (
	KindFixed             RuleKind = "fixed"
	KindAgeBased          RuleKind = "age_based"
	KindIntensityBased    RuleKind = "intensity_based"
	KindExposureTimeBased RuleKind = "exposure_time_based"
	KindCombined          RuleKind = "combined"
)

// Subject carries the worker attributes an advanced rule is evaluated against.
// Nil fields are unknown and never satisfy a condition that constrains them.
type Subject struct {
	Age            *int
	Intensity      string
	ExposureMonths *int
}

// Rule is the advanced periodicity rule. The set of variants is closed.
type Rule interface {
	Kind() RuleKind
	// Evaluate picks the first matching condition, falling back to the default.
	Evaluate(s Subject) int
	// Minimum is the shortest interval the rule can ever yield.
	Minimum() int
	wire() wireRule
}

type Fixed struct {
	Months int
}

type AgeBand struct {
	MinAge *int
	MaxAge *int
	Months int
}

type AgeBased struct {
	Bands         []AgeBand
	DefaultMonths int
}

type IntensityBand struct {
	Level  string
	Months int
}

type IntensityBased struct {
	Bands         []IntensityBand
	DefaultMonths int
}

type ExposureBand struct {
	MinExposureMonths int
	Months            int
}

type ExposureTimeBased struct {
	Bands         []ExposureBand
	DefaultMonths int
}

// Condition is the unrestricted form used by Combined: every constraint it
// sets must hold.
type Condition struct {
	MinAge            *int   `json:"minAge,omitempty"`
	MaxAge            *int   `json:"maxAge,omitempty"`
	IntensityLevel    string `json:"intensityLevel,omitempty"`
	ExposureMonths    *int   `json:"exposureMonths,omitempty"`
	PeriodicityMonths int    `json:"periodicityMonths"`
}

type Combined struct {
	Conditions    []Condition
	DefaultMonths int
}

func (Fixed) Kind() RuleKind             { return KindFixed }
func (AgeBased) Kind() RuleKind          { return KindAgeBased }
func (IntensityBased) Kind() RuleKind    { return KindIntensityBased }
func (ExposureTimeBased) Kind() RuleKind { return KindExposureTimeBased }
func (Combined) Kind() RuleKind          { return KindCombined }

func (r Fixed) Evaluate(Subject) int { return r.Months }

func (r AgeBased) Evaluate(s Subject) int {
	for _, b := range r.Bands {
		if ageMatches(b.MinAge, b.MaxAge, s.Age) {
			return b.Months
		}
	}
	return r.DefaultMonths
}

func (r IntensityBased) Evaluate(s Subject) int {
	for _, b := range r.Bands {
		if s.Intensity != "" && strings.EqualFold(b.Level, s.Intensity) {
			return b.Months
		}
	}
	return r.DefaultMonths
}

func (r ExposureTimeBased) Evaluate(s Subject) int {
	for _, b := range r.Bands {
		if s.ExposureMonths != nil && *s.ExposureMonths >= b.MinExposureMonths {
			return b.Months
		}
	}
	return r.DefaultMonths
}

func (r Combined) Evaluate(s Subject) int {
	for _, c := range r.Conditions {
		if c.matches(s) {
			return c.PeriodicityMonths
		}
	}
	return r.DefaultMonths
}

func (c Condition) matches(s Subject) bool {
	if c.MinAge != nil || c.MaxAge != nil {
		if !ageMatches(c.MinAge, c.MaxAge, s.Age) {
			return false
		}
	}
	if c.IntensityLevel != "" && !strings.EqualFold(c.IntensityLevel, s.Intensity) {
		return false
	}
	if c.ExposureMonths != nil {
		if s.ExposureMonths == nil || *s.ExposureMonths < *c.ExposureMonths {
			return false
		}
	}
	return true
}

func ageMatches(minAge, maxAge, age *int) bool {
	if age == nil {
		return false
	}
	if minAge != nil && *age < *minAge {
		return false
	}
	if maxAge != nil && *age > *maxAge {
		return false
	}
	return true
}

func (r Fixed) Minimum() int { return r.Months }

func (r AgeBased) Minimum() int {
	m := r.DefaultMonths
	for _, b := range r.Bands {
		m = min(m, b.Months)
	}
	return m
}

func (r IntensityBased) Minimum() int {
	m := r.DefaultMonths
	for _, b := range r.Bands {
		m = min(m, b.Months)
	}
	return m
}

func (r ExposureTimeBased) Minimum() int {
	m := r.DefaultMonths
	for _, b := range r.Bands {
		m = min(m, b.Months)
	}
	return m
}

func (r Combined) Minimum() int {
	m := r.DefaultMonths
	for _, c := range r.Conditions {
		m = min(m, c.PeriodicityMonths)
	}
	return m
}

// wireRule is the stored JSON shape: {type, conditions, defaultPeriodicityMonths}.
type wireRule struct {
	Type                     RuleKind    `json:"type"`
	Conditions               []Condition `json:"conditions"`
	DefaultPeriodicityMonths *int        `json:"defaultPeriodicityMonths"`
}

func (r Fixed) wire() wireRule {
	return wireRule{Type: KindFixed, Conditions: []Condition{}, DefaultPeriodicityMonths: intPtr(r.Months)}
}

func (r AgeBased) wire() wireRule {
	conds := make([]Condition, 0, len(r.Bands))
	for _, b := range r.Bands {
		conds = append(conds, Condition{MinAge: b.MinAge, MaxAge: b.MaxAge, PeriodicityMonths: b.Months})
	}
	return wireRule{Type: KindAgeBased, Conditions: conds, DefaultPeriodicityMonths: intPtr(r.DefaultMonths)}
}

func (r IntensityBased) wire() wireRule {
	conds := make([]Condition, 0, len(r.Bands))
	for _, b := range r.Bands {
		conds = append(conds, Condition{IntensityLevel: b.Level, PeriodicityMonths: b.Months})
	}
	return wireRule{Type: KindIntensityBased, Conditions: conds, DefaultPeriodicityMonths: intPtr(r.DefaultMonths)}
}

func (r ExposureTimeBased) wire() wireRule {
	conds := make([]Condition, 0, len(r.Bands))
	for _, b := range r.Bands {
		conds = append(conds, Condition{ExposureMonths: intPtr(b.MinExposureMonths), PeriodicityMonths: b.Months})
	}
	return wireRule{Type: KindExposureTimeBased, Conditions: conds, DefaultPeriodicityMonths: intPtr(r.DefaultMonths)}
}

func (r Combined) wire() wireRule {
	conds := make([]Condition, len(r.Conditions))
	copy(conds, r.Conditions)
	return wireRule{Type: KindCombined, Conditions: conds, DefaultPeriodicityMonths: intPtr(r.DefaultMonths)}
}

// MarshalRule encodes a rule in its stored JSON form. A nil rule encodes to nil.
func MarshalRule(r Rule) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r.wire())
}

// ParseRule decodes the stored JSON form. Empty input and JSON null decode to a nil rule.
func ParseRule(raw []byte) (Rule, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var w wireRule
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil, apierr.Validation("invalid_advanced_rule", "advanced periodicity rule is not valid JSON: %v", err)
	}
	if w.Type == "" {
		return nil, apierr.Validation("invalid_advanced_rule", "advanced periodicity rule requires \"type\"")
	}
	if w.Conditions == nil {
		return nil, apierr.Validation("invalid_advanced_rule", "advanced periodicity rule requires a \"conditions\" array")
	}
	if w.DefaultPeriodicityMonths == nil {
		return nil, apierr.Validation("invalid_advanced_rule", "advanced periodicity rule requires \"defaultPeriodicityMonths\"")
	}
	def := *w.DefaultPeriodicityMonths

	var r Rule
	switch w.Type {
	case KindFixed:
		if len(w.Conditions) > 0 {
			return nil, apierr.Validation("invalid_advanced_rule", "fixed rule takes no conditions")
		}
		r = Fixed{Months: def}
	case KindAgeBased:
		bands := make([]AgeBand, 0, len(w.Conditions))
		for i, c := range w.Conditions {
			if c.MinAge == nil && c.MaxAge == nil {
				return nil, apierr.Validation("invalid_advanced_rule", "age_based condition %d requires minAge or maxAge", i)
			}
			bands = append(bands, AgeBand{MinAge: c.MinAge, MaxAge: c.MaxAge, Months: c.PeriodicityMonths})
		}
		r = AgeBased{Bands: bands, DefaultMonths: def}
	case KindIntensityBased:
		bands := make([]IntensityBand, 0, len(w.Conditions))
		for i, c := range w.Conditions {
			if strings.TrimSpace(c.IntensityLevel) == "" {
				return nil, apierr.Validation("invalid_advanced_rule", "intensity_based condition %d requires intensityLevel", i)
			}
			bands = append(bands, IntensityBand{Level: strings.ToUpper(strings.TrimSpace(c.IntensityLevel)), Months: c.PeriodicityMonths})
		}
		r = IntensityBased{Bands: bands, DefaultMonths: def}
	case KindExposureTimeBased:
		bands := make([]ExposureBand, 0, len(w.Conditions))
		for i, c := range w.Conditions {
			if c.ExposureMonths == nil {
				return nil, apierr.Validation("invalid_advanced_rule", "exposure_time_based condition %d requires exposureMonths", i)
			}
			bands = append(bands, ExposureBand{MinExposureMonths: *c.ExposureMonths, Months: c.PeriodicityMonths})
		}
		r = ExposureTimeBased{Bands: bands, DefaultMonths: def}
	case KindCombined:
		conds := make([]Condition, len(w.Conditions))
		copy(conds, w.Conditions)
		r = Combined{Conditions: conds, DefaultMonths: def}
	default:
		return nil, apierr.Validation("invalid_advanced_rule", "unknown advanced rule type %q", w.Type)
	}
	if err := validateRule(r); err != nil {
		return nil, err
	}
	return r, nil
}

func validateRule(r Rule) error {
	w := r.wire()
	if !inRange(*w.DefaultPeriodicityMonths) {
		return apierr.Validation("invalid_advanced_rule", "defaultPeriodicityMonths must be between %d and %d", MinMonths, MaxMonths)
	}
	for i, c := range w.Conditions {
		if !inRange(c.PeriodicityMonths) {
			return apierr.Validation("invalid_advanced_rule", "condition %d: periodicityMonths must be between %d and %d", i, MinMonths, MaxMonths)
		}
		if c.MinAge != nil && c.MaxAge != nil && *c.MinAge > *c.MaxAge {
			return apierr.Validation("invalid_advanced_rule", "condition %d: minAge greater than maxAge", i)
		}
	}
	return nil
}

func canonicalRule(r Rule) string {
	if r == nil {
		return ""
	}
	raw, err := MarshalRule(r)
	if err != nil {
		return fmt.Sprintf("%s:%v", r.Kind(), r)
	}
	return string(raw)
}

func intPtr(v int) *int { return &v }
