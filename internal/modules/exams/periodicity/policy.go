package periodicity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/occhealth/pcmso-backend/internal/platform/apierr"
)

type Type string

const (
	EventOnly Type = "EVENT_ONLY"
	Periodic  Type = "PERIODIC"
	Custom    Type = "CUSTOM"
)

const (
	MinMonths = 1
	MaxMonths = 120
)

func (t Type) Valid() bool {
	switch t {
	case EventOnly, Periodic, Custom:
		return true
	}
	return false
}

// Policy is a validated periodicity policy. When both Months and Rule are
// set on a PERIODIC policy, the rule decides the effective interval.
type Policy struct {
	Type   Type
	Months *int
	Rule   Rule
}

// Parse builds a policy from its stored columns and validates it.
func Parse(typ string, months *int, advanced []byte) (Policy, error) {
	rule, err := ParseRule(advanced)
	if err != nil {
		return Policy{}, err
	}
	p := Policy{Type: Type(strings.ToUpper(strings.TrimSpace(typ))), Months: months, Rule: rule}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func EveryMonths(n int) Policy {
	return Policy{Type: Periodic, Months: intPtr(n)}
}

func (p Policy) Validate() error {
	if !p.Type.Valid() {
		return apierr.Validation("invalid_periodicity_type", "periodicity type must be one of EVENT_ONLY, PERIODIC, CUSTOM (got %q)", p.Type)
	}
	if p.Months != nil && !inRange(*p.Months) {
		return apierr.Validation("invalid_periodicity_value", "periodicity value must be between %d and %d months", MinMonths, MaxMonths)
	}
	if p.Rule != nil {
		if err := validateRule(p.Rule); err != nil {
			return err
		}
	}
	switch p.Type {
	case EventOnly:
		if p.Months != nil || p.Rule != nil {
			return apierr.Validation("event_only_with_interval", "EVENT_ONLY periodicity takes neither a value nor an advanced rule")
		}
	case Periodic:
		if p.Months == nil && p.Rule == nil {
			return apierr.Validation("periodicity_value_required", "PERIODIC periodicity requires periodicityValue or periodicityAdvancedRule")
		}
	case Custom:
		if p.Rule == nil {
			return apierr.Validation("advanced_rule_required", "CUSTOM periodicity requires periodicityAdvancedRule")
		}
	}
	return nil
}

// EffectiveMonths resolves the interval for a subject. EVENT_ONLY has none.
func (p Policy) EffectiveMonths(s Subject) (int, bool) {
	switch {
	case p.Type == EventOnly:
		return 0, false
	case p.Rule != nil:
		return p.Rule.Evaluate(s), true
	case p.Months != nil:
		return *p.Months, true
	}
	return 0, false
}

// MinInterval is the shortest interval the policy can yield for any subject.
func (p Policy) MinInterval() (int, bool) {
	switch {
	case p.Type == EventOnly:
		return 0, false
	case p.Rule != nil:
		return p.Rule.Minimum(), true
	case p.Months != nil:
		return *p.Months, true
	}
	return 0, false
}

// AdvancedJSON returns the stored form of the rule, nil when absent.
func (p Policy) AdvancedJSON() []byte {
	raw, _ := MarshalRule(p.Rule)
	return raw
}

// Canonical is a stable string form; value-equal policies have equal canonical forms.
func (p Policy) Canonical() string {
	months := "-"
	if p.Months != nil {
		months = strconv.Itoa(*p.Months)
	}
	return string(p.Type) + "|" + months + "|" + canonicalRule(p.Rule)
}

func (p Policy) Equal(o Policy) bool {
	return p.Canonical() == o.Canonical()
}

// StricterThan reports whether p demands exams at least as often as o,
// with ties broken by canonical form so that the order of comparison never matters.
func (p Policy) StricterThan(o Policy) bool {
	pm, pok := p.MinInterval()
	om, ook := o.MinInterval()
	switch {
	case pok && !ook:
		return true
	case !pok && ook:
		return false
	case pok && ook && pm != om:
		return pm < om
	}
	return p.Canonical() < o.Canonical()
}

// MostStringent picks the policy with the shortest interval. The result does
// not depend on argument order.
func MostStringent(policies ...Policy) (Policy, bool) {
	if len(policies) == 0 {
		return Policy{}, false
	}
	best := policies[0]
	for _, p := range policies[1:] {
		if p.StricterThan(best) {
			best = p
		}
	}
	return best, true
}

// Describe is a short human-readable form used in change descriptions.
func (p Policy) Describe() string {
	switch p.Type {
	case EventOnly:
		return "event-driven only"
	case Periodic, Custom:
		if p.Rule != nil {
			return fmt.Sprintf("%s rule (default %d months, minimum %d)", p.Rule.Kind(), p.Rule.wire().defaultMonths(), p.Rule.Minimum())
		}
		if p.Months != nil {
			return fmt.Sprintf("every %d months", *p.Months)
		}
	}
	return string(p.Type)
}

// DefaultMonths of the advanced rule, zero when there is none.
func (p Policy) DefaultMonths() int {
	if p.Rule == nil {
		return 0
	}
	return p.Rule.wire().defaultMonths()
}

func (w wireRule) defaultMonths() int {
	if w.DefaultPeriodicityMonths == nil {
		return 0
	}
	return *w.DefaultPeriodicityMonths
}

type policyJSON struct {
	Type         Type            `json:"periodicityType"`
	Months       *int            `json:"periodicityValue,omitempty"`
	AdvancedRule json.RawMessage `json:"periodicityAdvancedRule,omitempty"`
}

func (p Policy) MarshalJSON() ([]byte, error) {
	return json.Marshal(policyJSON{Type: p.Type, Months: p.Months, AdvancedRule: p.AdvancedJSON()})
}

func (p *Policy) UnmarshalJSON(data []byte) error {
	var pj policyJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return err
	}
	parsed, err := Parse(string(pj.Type), pj.Months, pj.AdvancedRule)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func inRange(n int) bool {
	return n >= MinMonths && n <= MaxMonths
}
