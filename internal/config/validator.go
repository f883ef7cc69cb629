package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// Rate bounds: below 1/s a benchmark tells you nothing, above 1000/s
// the single-process pacing loop is past its useful range.
const (
	minRate = 1.0
	maxRate = 1000.0

	maxWorkers = 10000
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in one pass so the
// operator fixes the file once, not field by field.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add appends an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors reports whether anything was collected.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks every range and format constraint. It returns nil or
// a *ValidationErrors listing everything wrong.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	if c.Target.BaseURL == "" {
		errs.Add("target.baseUrl", "is required")
	} else if u, err := url.Parse(c.Target.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs.Add("target.baseUrl", fmt.Sprintf("%q is not an absolute URL", c.Target.BaseURL))
	}

	if c.Workflow.Kind == "" {
		errs.Add("workflow.kind", "is required")
	}
	if c.Workflow.Params != "" && !gjson.Valid(c.Workflow.Params) {
		errs.Add("workflow.params", "is not valid JSON")
	}
	if c.Workflow.ParamsSchema != "" {
		if err := validateParamsAgainstSchema(c.Workflow.Params, c.Workflow.ParamsSchema); err != nil {
			errs.Add("workflow.params", err.Error())
		}
	}

	if c.Load.Rate < minRate || c.Load.Rate > maxRate {
		errs.Add("load.rate", fmt.Sprintf("must be in [%g, %g], got %g", minRate, maxRate, c.Load.Rate))
	}
	if c.Load.Duration <= 0 {
		errs.Add("load.duration", "must be positive")
	}
	if c.Load.RampUp < 0 {
		errs.Add("load.rampUp", "must not be negative")
	}
	if c.Load.Duration > 0 && c.Load.RampUp >= c.Load.Duration {
		errs.Add("load.rampUp", "must be strictly less than load.duration")
	}
	if c.Load.Workers < 1 || c.Load.Workers > maxWorkers {
		errs.Add("load.workers", fmt.Sprintf("must be in [1, %d], got %d", maxWorkers, c.Load.Workers))
	}

	if c.Thresholds.MaxP99 < 0 {
		errs.Add("thresholds.maxP99", "must not be negative")
	}
	if c.Thresholds.MinThroughput < 0 {
		errs.Add("thresholds.minThroughput", "must not be negative")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// validateParamsAgainstSchema compiles the per-kind schema and checks
// the params payload against it.
func validateParamsAgainstSchema(params, schema string) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("params-schema.json", strings.NewReader(schema)); err != nil {
		return fmt.Errorf("invalid paramsSchema: %w", err)
	}
	compiled, err := compiler.Compile("params-schema.json")
	if err != nil {
		return fmt.Errorf("invalid paramsSchema: %w", err)
	}

	if params == "" {
		params = "{}"
	}
	var doc interface{}
	if err := json.Unmarshal([]byte(params), &doc); err != nil {
		return fmt.Errorf("is not valid JSON: %w", err)
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("does not match paramsSchema: %v", err)
	}
	return nil
}
