package services

import (
	"bytes"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"

	"github.com/occhealth/pcmso-backend/internal/domain/pcmso"
	"github.com/occhealth/pcmso-backend/internal/domain/rules"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
)

// pinningStatuses are the version statuses that keep a contributing rule from being removed.
var pinningStatuses = []pcmso.Status{pcmso.StatusDraft, pcmso.StatusUnderReview, pcmso.StatusSigned}

// RuleInput carries the fields shared by risk and job rules on create.
type RuleInput struct {
	PeriodicityType         periodicity.Type `json:"periodicity_type"`
	PeriodicityValue        *int             `json:"periodicity_value"`
	PeriodicityAdvancedRule json.RawMessage  `json:"periodicity_advanced_rule"`
	ApplicableOnAdmission   bool             `json:"applicable_on_admission"`
	ApplicableOnDismissal   bool             `json:"applicable_on_dismissal"`
	ApplicableOnReturn      bool             `json:"applicable_on_return"`
	ApplicableOnChange      bool             `json:"applicable_on_change"`
	ApplicablePeriodic      bool             `json:"applicable_periodic"`
	Justification           string           `json:"justification"`
	Notes                   string           `json:"notes"`
	Active                  *bool            `json:"active"`
}

func (in RuleInput) fields() (rules.RuleFields, error) {
	policy, err := periodicity.Parse(string(in.PeriodicityType), in.PeriodicityValue, in.PeriodicityAdvancedRule)
	if err != nil {
		return rules.RuleFields{}, err
	}
	f := rules.RuleFields{
		Applicability: rules.Applicability{
			OnAdmission: in.ApplicableOnAdmission,
			OnDismissal: in.ApplicableOnDismissal,
			OnReturn:    in.ApplicableOnReturn,
			OnChange:    in.ApplicableOnChange,
			Periodic:    in.ApplicablePeriodic,
		},
		Justification: strings.TrimSpace(in.Justification),
		Notes:         strings.TrimSpace(in.Notes),
		Active:        boolOr(in.Active, true),
	}
	f.SetPolicy(policy)
	return f, nil
}

// RulePatch is a partial update. A JSON null periodicity_advanced_rule clears the rule.
type RulePatch struct {
	PeriodicityType         *periodicity.Type `json:"periodicity_type"`
	PeriodicityValue        *int              `json:"periodicity_value"`
	PeriodicityAdvancedRule json.RawMessage   `json:"periodicity_advanced_rule"`
	ApplicableOnAdmission   *bool             `json:"applicable_on_admission"`
	ApplicableOnDismissal   *bool             `json:"applicable_on_dismissal"`
	ApplicableOnReturn      *bool             `json:"applicable_on_return"`
	ApplicableOnChange      *bool             `json:"applicable_on_change"`
	ApplicablePeriodic      *bool             `json:"applicable_periodic"`
	Justification           *string           `json:"justification"`
	Notes                   *string           `json:"notes"`
	Active                  *bool             `json:"active"`
}

func (p RulePatch) touchesPolicy() bool {
	return p.PeriodicityType != nil || p.PeriodicityValue != nil || len(p.PeriodicityAdvancedRule) > 0
}

func (p RulePatch) deactivates(cur rules.RuleFields) bool {
	return p.Active != nil && !*p.Active && cur.Active
}

// updates merges p over cur and returns the column updates. The merged
// policy is validated as a whole.
func (p RulePatch) updates(cur rules.RuleFields) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if p.touchesPolicy() {
		typ := cur.PeriodicityType
		if p.PeriodicityType != nil {
			typ = periodicity.Type(strings.ToUpper(strings.TrimSpace(string(*p.PeriodicityType))))
		}
		months := cur.PeriodicityValue
		if p.PeriodicityValue != nil {
			months = p.PeriodicityValue
		}
		advanced := []byte(cur.PeriodicityAdvancedRule)
		if len(p.PeriodicityAdvancedRule) > 0 {
			advanced = p.PeriodicityAdvancedRule
		}
		// Switching to EVENT_ONLY drops whatever interval was stored unless
		// the caller sent one explicitly, which Validate then rejects.
		if typ == periodicity.EventOnly && typ != cur.PeriodicityType {
			if p.PeriodicityValue == nil {
				months = nil
			}
			if len(p.PeriodicityAdvancedRule) == 0 {
				advanced = nil
			}
		}
		policy, err := periodicity.Parse(string(typ), months, advanced)
		if err != nil {
			return nil, err
		}
		var f rules.RuleFields
		f.SetPolicy(policy)
		out["periodicity_type"] = f.PeriodicityType
		out["periodicity_value"] = f.PeriodicityValue
		if len(f.PeriodicityAdvancedRule) == 0 || bytes.Equal(f.PeriodicityAdvancedRule, []byte("null")) {
			out["periodicity_advanced_rule"] = nil
		} else {
			out["periodicity_advanced_rule"] = datatypes.JSON(f.PeriodicityAdvancedRule)
		}
	}
	setBool(out, "applicable_on_admission", p.ApplicableOnAdmission)
	setBool(out, "applicable_on_dismissal", p.ApplicableOnDismissal)
	setBool(out, "applicable_on_return", p.ApplicableOnReturn)
	setBool(out, "applicable_on_change", p.ApplicableOnChange)
	setBool(out, "applicable_periodic", p.ApplicablePeriodic)
	setString(out, "justification", p.Justification)
	setString(out, "notes", p.Notes)
	setBool(out, "active", p.Active)
	return out, nil
}

func setBool(updates map[string]interface{}, column string, v *bool) {
	if v != nil {
		updates[column] = *v
	}
}
