package xp

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const policySchemaURL = "schema://xp-policy.json"

// ErrInvalidPolicy is returned when a policy fails validation.
var ErrInvalidPolicy = errors.New("invalid xp policy")

// policySchema constrains the shape and ranges of a Policy after it has been
// round-tripped through JSON.
var policySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"strictness": map[string]any{
			"type": "string",
			"enum": []any{"lenient", "balanced", "strict"},
		},
		"minEffectiveMinutes":       map[string]any{"type": "number", "minimum": 0},
		"shortSessionDiminishK":     map[string]any{"type": "number", "exclusiveMinimum": 0},
		"shortSessionWindowMinutes": map[string]any{"type": "integer", "minimum": 1},
		"shortSessionCapPerWindow":  map[string]any{"type": "integer", "minimum": 0},
		"baseXpPerMinute":           map[string]any{"type": "number", "minimum": 0},
		"taskCompletionMultiplier":  map[string]any{"type": "number", "minimum": 1},
		"streakBonusEnabled":        map[string]any{"type": "boolean"},
		"maxStreakBonus":            map[string]any{"type": "number", "minimum": 0},
		"streakDivisor":             map[string]any{"type": "number", "exclusiveMinimum": 0},
		"workBreakRatioEnabled":     map[string]any{"type": "boolean"},
		"idealWorkBreakRatio":       map[string]any{"type": "number", "exclusiveMinimum": 0},
		"maxRatioBonus":             map[string]any{"type": "number", "minimum": 0},
		"petXpRatio":                map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"maxPetMultiplier":          map[string]any{"type": "number", "minimum": 1},
		"penaltiesEnabled":          map[string]any{"type": "boolean"},
		"manualStopPenalty":         map[string]any{"type": "integer", "minimum": 0},
		"leavePenalty":              map[string]any{"type": "integer", "minimum": 0},
		"timeTolerance":             map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"workMinutes":               map[string]any{"$ref": "#/$defs/range"},
		"breakMinutes":              map[string]any{"$ref": "#/$defs/range"},
		"historyLimit":              map[string]any{"type": "integer", "minimum": 1},
	},
	"required": []any{
		"strictness", "minEffectiveMinutes", "shortSessionDiminishK",
		"shortSessionWindowMinutes", "shortSessionCapPerWindow", "baseXpPerMinute",
		"taskCompletionMultiplier", "maxStreakBonus", "streakDivisor",
		"idealWorkBreakRatio", "maxRatioBonus", "petXpRatio", "manualStopPenalty",
		"timeTolerance", "workMinutes", "breakMinutes", "historyLimit",
	},
	"$defs": map[string]any{
		"range": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"min": map[string]any{"type": "integer", "minimum": 1},
				"max": map[string]any{"type": "integer", "minimum": 1},
			},
			"required": []any{"min", "max"},
		},
	},
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// Validate checks the policy against the embedded schema and the
// cross-field rules the schema cannot express.
func (p Policy) Validate() error {
	s, err := compiledPolicySchema()
	if err != nil {
		return fmt.Errorf("compile policy schema: %w", err)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse policy: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	if p.WorkMinutes.Min > p.WorkMinutes.Max {
		return fmt.Errorf("%w: workMinutes min %d > max %d", ErrInvalidPolicy, p.WorkMinutes.Min, p.WorkMinutes.Max)
	}
	if p.BreakMinutes.Min > p.BreakMinutes.Max {
		return fmt.Errorf("%w: breakMinutes min %d > max %d", ErrInvalidPolicy, p.BreakMinutes.Min, p.BreakMinutes.Max)
	}
	return nil
}

func compiledPolicySchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler wants decoded JSON, not Go literals.
		defBytes, err := json.Marshal(policySchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema definition: %w", err)
			return
		}
		var def any
		if err := json.Unmarshal(defBytes, &def); err != nil {
			compileErr = fmt.Errorf("parse schema definition: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource(policySchemaURL, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(policySchemaURL)
	})
	return compiled, compileErr
}
