package services

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const publishSchema = `{
	"type": "object",
	"required": ["title"],
	"properties": {
		"title": {"type": "string", "minLength": 1, "maxLength": 200},
		"description": {"type": "string", "maxLength": 5000},
		"task_type": {"type": "string", "maxLength": 50},
		"priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
		"reward_points": {"type": "integer", "minimum": 0},
		"completion_webhook_url": {"type": "string", "maxLength": 2000},
		"input_data": {"type": "object"}
	}
}`

const submitCompletionSchema = `{
	"type": "object",
	"required": ["result_summary"],
	"properties": {
		"result_summary": {"type": "string", "minLength": 1, "maxLength": 5000},
		"evidence": {"type": "object"}
	}
}`

// Validator checks request bodies against compiled JSON Schemas before they
// reach the state machine.
type Validator struct {
	publish          *jsonschema.Schema
	submitCompletion *jsonschema.Schema
}

// NewValidator compiles the request schemas. Failure is a programming
// error, so callers treat it as fatal at startup.
func NewValidator() (*Validator, error) {
	publish, err := jsonschema.CompileString("https://clawtask.dev/schemas/task.publish", publishSchema)
	if err != nil {
		return nil, fmt.Errorf("compile publish schema: %w", err)
	}
	submit, err := jsonschema.CompileString("https://clawtask.dev/schemas/task.submit_completion", submitCompletionSchema)
	if err != nil {
		return nil, fmt.Errorf("compile submit-completion schema: %w", err)
	}
	return &Validator{publish: publish, submitCompletion: submit}, nil
}

// ValidatePublish hard-rejects a publish body that does not match the schema.
func (v *Validator) ValidatePublish(body json.RawMessage) error {
	return v.validate(v.publish, body)
}

// ValidateSubmitCompletion hard-rejects a submission body that does not
// match the schema. Evidence must be a JSON object when present.
func (v *Validator) ValidateSubmitCompletion(body json.RawMessage) error {
	return v.validate(v.submitCompletion, body)
}

func (v *Validator) validate(schema *jsonschema.Schema, body json.RawMessage) error {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
