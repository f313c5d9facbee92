package deid

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultIdentifierColumn = "person_id"

// Policy names the columns removed outright and the column replaced by a
// pseudonym.
type Policy struct {
	DirectIdentifiers []string `yaml:"direct_identifiers" json:"direct_identifiers"`
	IdentifierColumn  string   `yaml:"identifier_column" json:"identifier_column"`
}

func DefaultPolicy() Policy {
	return Policy{
		DirectIdentifiers: []string{"name", "address", "email", "phone", "ssn"},
		IdentifierColumn:  DefaultIdentifierColumn,
	}
}

func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultPolicy(), err
	}

	var policy Policy
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return Policy{}, err
	}
	if len(policy.DirectIdentifiers) == 0 {
		return Policy{}, errors.New("de-identification policy lists no direct identifiers")
	}
	if strings.TrimSpace(policy.IdentifierColumn) == "" {
		policy.IdentifierColumn = DefaultIdentifierColumn
	}
	return policy, nil
}

func (p Policy) directSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.DirectIdentifiers))
	for _, c := range p.DirectIdentifiers {
		if trimmed := strings.TrimSpace(strings.ToLower(c)); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}
