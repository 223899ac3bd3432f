// Package signing seals a PCMSO version with a digest over a canonical
// encoding of its content and materialized requirements.
package signing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"github.com/occhealth/pcmso-backend/internal/domain/pcmso"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
)

type canonicalRequirement struct {
	ExamID           uuid.UUID        `json:"examId"`
	JobID            uuid.UUID        `json:"jobId"`
	Source           pcmso.SourceType `json:"source"`
	PeriodicityType  periodicity.Type `json:"periodicityType"`
	PeriodicityValue *int             `json:"periodicityValue"`
}

type canonicalVersion struct {
	VersionNumber int                    `json:"versionNumber"`
	Title         string                 `json:"title"`
	ContentHTML   string                 `json:"contentHtml"`
	Requirements  []canonicalRequirement `json:"examRequirements"`
}

// Canonical returns the byte form the digest is computed over. Requirement
// order in the input does not matter.
func Canonical(v pcmso.Version, rows []pcmso.ExamRequirement) ([]byte, error) {
	sorted := append([]pcmso.ExamRequirement(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ExamID != b.ExamID {
			return a.ExamID.String() < b.ExamID.String()
		}
		if a.JobID != b.JobID {
			return a.JobID.String() < b.JobID.String()
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.SourceRuleID.String() < b.SourceRuleID.String()
	})
	doc := canonicalVersion{
		VersionNumber: v.VersionNumber,
		Title:         v.Title,
		ContentHTML:   v.ContentHTML,
		Requirements:  make([]canonicalRequirement, 0, len(sorted)),
	}
	for _, r := range sorted {
		doc.Requirements = append(doc.Requirements, canonicalRequirement{
			ExamID:           r.ExamID,
			JobID:            r.JobID,
			Source:           r.Source,
			PeriodicityType:  r.PeriodicityType,
			PeriodicityValue: r.PeriodicityValue,
		})
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Digest is the lowercase hex SHA-256 of Canonical.
func Digest(v pcmso.Version, rows []pcmso.ExamRequirement) (string, error) {
	raw, err := Canonical(v, rows)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
