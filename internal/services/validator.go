package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrValidation can be used with errors.Is to detect malformed request bodies.
var ErrValidation = errors.New("validation failed")

const uuidPattern = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`

var createBookingSchema = `{
	"type": "object",
	"required": ["teacher_id", "skill", "date_time"],
	"properties": {
		"teacher_id": {"type": "string", "pattern": "` + uuidPattern + `"},
		"skill": {"type": "string", "minLength": 1, "maxLength": 200},
		"skill_id": {"type": ["string", "null"], "pattern": "` + uuidPattern + `"},
		"date_time": {"type": "string", "minLength": 1},
		"duration": {"type": ["number", "string"], "exclusiveMinimum": 0, "maximum": 24},
		"notes": {"type": "string", "maxLength": 2000},
		"credits_per_hour": {"type": "integer", "minimum": 1, "maximum": 3}
	}
}`

var createSkillSchema = `{
	"type": "object",
	"required": ["skill_name", "level", "credits_per_hour"],
	"properties": {
		"skill_name": {"type": "string", "minLength": 1, "maxLength": 200},
		"level": {"enum": ["beginner", "intermediate", "advanced", "expert"]},
		"credits_per_hour": {"type": "integer", "minimum": 1, "maximum": 3},
		"description": {"type": "string", "maxLength": 2000}
	}
}`

// Validator checks request bodies against compiled JSON schemas before they
// are decoded into service inputs.
type Validator struct {
	createBooking *jsonschema.Schema
	createSkill   *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	createBooking, err := jsonschema.CompileString("https://skillswap.dev/schemas/create-booking", createBookingSchema)
	if err != nil {
		return nil, fmt.Errorf("compile create-booking schema: %w", err)
	}
	createSkill, err := jsonschema.CompileString("https://skillswap.dev/schemas/create-skill", createSkillSchema)
	if err != nil {
		return nil, fmt.Errorf("compile create-skill schema: %w", err)
	}
	return &Validator{createBooking: createBooking, createSkill: createSkill}, nil
}

// ValidateCreateBooking rejects a create-booking body that does not match the schema.
func (v *Validator) ValidateCreateBooking(body []byte) error {
	return validate(v.createBooking, body)
}

// ValidateCreateSkill rejects a create-skill body that does not match the schema.
func (v *Validator) ValidateCreateSkill(body []byte) error {
	return validate(v.createSkill, body)
}

func validate(schema *jsonschema.Schema, body []byte) error {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
