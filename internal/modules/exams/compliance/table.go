package compliance

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed nr7.yaml
var defaultTable []byte

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type Requirement struct {
	Exam                 string   `yaml:"exam"`
	Keywords             []string `yaml:"keywords"`
	Severity             Severity `yaml:"severity"`
	MaxPeriodicityMonths int      `yaml:"maxPeriodicityMonths"`
	Reference            string   `yaml:"reference"`
}

type Hazard struct {
	ID           string        `yaml:"id"`
	Name         string        `yaml:"hazard"`
	Match        [][]string    `yaml:"match"`
	Requirements []Requirement `yaml:"requirements"`
}

type Table struct {
	BaselineExamKeywords []string `yaml:"baselineExamKeywords"`
	Hazards              []Hazard `yaml:"hazards"`
}

// DefaultTable is the table compiled into the binary.
func DefaultTable() (*Table, error) {
	return ParseTable(defaultTable)
}

// LoadTable reads a replacement table from disk. An empty path yields the default.
func LoadTable(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTable()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compliance table: %w", err)
	}
	return ParseTable(raw)
}

func ParseTable(raw []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse compliance table: %w", err)
	}
	seen := map[string]bool{}
	for i, h := range t.Hazards {
		if h.ID == "" || h.Name == "" {
			return nil, fmt.Errorf("compliance table: hazard %d needs id and hazard name", i)
		}
		if seen[h.ID] {
			return nil, fmt.Errorf("compliance table: duplicate hazard id %q", h.ID)
		}
		seen[h.ID] = true
		if len(h.Match) == 0 {
			return nil, fmt.Errorf("compliance table: hazard %q has no match groups", h.ID)
		}
		for j, r := range h.Requirements {
			if len(r.Keywords) == 0 {
				return nil, fmt.Errorf("compliance table: hazard %q requirement %d has no keywords", h.ID, j)
			}
			switch r.Severity {
			case SeverityError, SeverityWarning:
			default:
				return nil, fmt.Errorf("compliance table: hazard %q requirement %d has unknown severity %q", h.ID, j, r.Severity)
			}
		}
	}
	return &t, nil
}
