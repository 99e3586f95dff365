// Package policy audits transformed country records with an Open Policy
// Agent Rego module before they are written to the store.
package policy

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/global-data-controller/countryseed/internal/models"
)

// Query is the rule every audit module must define.
const Query = "data.countryseed.audit.deny"

// ErrViolations is returned by Enforce when the audit found problems.
var ErrViolations = errors.New("audit violations")

//go:embed audit.rego
var defaultModule string

// DefaultModule returns the embedded audit module source.
func DefaultModule() string {
	return defaultModule
}

// LoadModule reads a Rego module from disk.
func LoadModule(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read audit policy %s: %w", path, err)
	}
	return string(data), nil
}

// Auditor evaluates a prepared audit query.
type Auditor struct {
	query rego.PreparedEvalQuery
}

// NewAuditor compiles module. An empty module selects the embedded one.
func NewAuditor(ctx context.Context, module string) (*Auditor, error) {
	if strings.TrimSpace(module) == "" {
		module = defaultModule
	}

	r := rego.New(
		rego.Query(Query),
		rego.Module("audit.rego", module),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile audit policy: %w", err)
	}

	return &Auditor{query: query}, nil
}

// Audit returns the sorted violation messages for countries.
func (a *Auditor) Audit(ctx context.Context, countries []models.Country) ([]string, error) {
	input, err := auditInput(countries)
	if err != nil {
		return nil, err
	}

	rs, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate audit policy: %w", err)
	}

	violations := []string{}
	for _, result := range rs {
		for _, expr := range result.Expressions {
			values, ok := expr.Value.([]interface{})
			if !ok {
				return nil, fmt.Errorf("audit policy returned %T, expected a set of messages", expr.Value)
			}
			for _, v := range values {
				violations = append(violations, fmt.Sprint(v))
			}
		}
	}
	sort.Strings(violations)

	return violations, nil
}

// Enforce turns a non-empty violation list into an error wrapping
// ErrViolations.
func Enforce(violations []string) error {
	if len(violations) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d found, first: %s", ErrViolations, len(violations), violations[0])
}

// auditInput converts records to their document form so the policy sees
// the persisted field names.
func auditInput(countries []models.Country) (map[string]interface{}, error) {
	data, err := json.Marshal(countries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit input: %w", err)
	}

	var docs []interface{}
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode audit input: %w", err)
	}
	if docs == nil {
		docs = []interface{}{}
	}

	return map[string]interface{}{
		"countries":      docs,
		"middle_eastern": models.MiddleEasternCodes(),
	}, nil
}
