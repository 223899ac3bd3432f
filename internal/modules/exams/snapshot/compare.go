package snapshot

import (
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
)

type ChangeType string

const (
	ChangeRuleAdded          ChangeType = "RULE_ADDED"
	ChangeExamAdded          ChangeType = "EXAM_ADDED"
	ChangeExamRemoved        ChangeType = "EXAM_REMOVED"
	ChangePeriodicityChanged ChangeType = "PERIODICITY_CHANGED"
)

type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

type Modified struct {
	ExamID   uuid.UUID     `json:"examId"`
	ExamName string        `json:"examName"`
	Old      Item          `json:"old"`
	New      Item          `json:"new"`
	Changes  []FieldChange `json:"changes"`
}

type Comparison struct {
	Added    []Item     `json:"added"`
	Removed  []Item     `json:"removed"`
	Modified []Modified `json:"modified"`
}

func (c Comparison) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// Compare classifies every exam of prev and curr. Two value-equal policies are
// never a modification, whatever rules produced them.
func Compare(prev, curr Map) Comparison {
	out := Comparison{Added: []Item{}, Removed: []Item{}, Modified: []Modified{}}
	for _, id := range sortedKeys(curr) {
		c := curr[id]
		p, ok := prev[id]
		if !ok {
			out.Added = append(out.Added, c)
			continue
		}
		if !p.Policy.Equal(c.Policy) {
			out.Modified = append(out.Modified, Modified{
				ExamID:   id,
				ExamName: c.ExamName,
				Old:      p,
				New:      c,
				Changes:  FieldChanges(p.Policy, c.Policy),
			})
		}
	}
	for _, id := range sortedKeys(prev) {
		if _, ok := curr[id]; !ok {
			out.Removed = append(out.Removed, prev[id])
		}
	}
	return out
}

// FieldChanges lists the periodicity columns that differ between two policies.
func FieldChanges(old, cur periodicity.Policy) []FieldChange {
	var out []FieldChange
	if old.Type != cur.Type {
		out = append(out, FieldChange{Field: "periodicityType", Old: string(old.Type), New: string(cur.Type)})
	}
	if ov, nv := monthsString(old.Months), monthsString(cur.Months); ov != nv {
		out = append(out, FieldChange{Field: "periodicityValue", Old: ov, New: nv})
	}
	if ov, nv := string(old.AdvancedJSON()), string(cur.AdvancedJSON()); ov != nv {
		out = append(out, FieldChange{Field: "periodicityAdvancedRule", Old: ov, New: nv})
	}
	return out
}

func monthsString(m *int) string {
	if m == nil {
		return ""
	}
	return strconv.Itoa(*m)
}

func sortedKeys(m Map) []uuid.UUID {
	keys := make([]uuid.UUID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
