package services

import (
	"errors"
	"testing"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestValidateCreateBooking(t *testing.T) {
	v := newTestValidator(t)

	valid := `{"teacher_id":"6f1c1f58-6a55-4a52-a4a4-3c2e6f1f7f10","skill":"Guitar","date_time":"2026-05-01T10:00:00Z","duration":2,"credits_per_hour":2}`
	if err := v.ValidateCreateBooking([]byte(valid)); err != nil {
		t.Fatalf("expected valid body, got: %v", err)
	}

	cases := []struct {
		name string
		body string
	}{
		{"not json", `{"teacher_id":`},
		{"missing teacher", `{"skill":"Guitar","date_time":"2026-05-01T10:00:00Z"}`},
		{"bad teacher id", `{"teacher_id":"nope","skill":"Guitar","date_time":"2026-05-01T10:00:00Z"}`},
		{"empty skill", `{"teacher_id":"6f1c1f58-6a55-4a52-a4a4-3c2e6f1f7f10","skill":"","date_time":"2026-05-01T10:00:00Z"}`},
		{"rate above band", `{"teacher_id":"6f1c1f58-6a55-4a52-a4a4-3c2e6f1f7f10","skill":"Guitar","date_time":"2026-05-01T10:00:00Z","credits_per_hour":5}`},
		{"duration over a day", `{"teacher_id":"6f1c1f58-6a55-4a52-a4a4-3c2e6f1f7f10","skill":"Guitar","date_time":"2026-05-01T10:00:00Z","duration":25}`},
		{"zero duration", `{"teacher_id":"6f1c1f58-6a55-4a52-a4a4-3c2e6f1f7f10","skill":"Guitar","date_time":"2026-05-01T10:00:00Z","duration":0}`},
		{"fractional rate", `{"teacher_id":"6f1c1f58-6a55-4a52-a4a4-3c2e6f1f7f10","skill":"Guitar","date_time":"2026-05-01T10:00:00Z","credits_per_hour":1.5}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := v.ValidateCreateBooking([]byte(tc.body)); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got: %v", err)
			}
		})
	}
}

func TestValidateCreateSkill(t *testing.T) {
	v := newTestValidator(t)

	if err := v.ValidateCreateSkill([]byte(`{"skill_name":"Chess","level":"expert","credits_per_hour":3}`)); err != nil {
		t.Fatalf("expected valid body, got: %v", err)
	}
	if err := v.ValidateCreateSkill([]byte(`{"skill_name":"Chess","level":"grandmaster","credits_per_hour":3}`)); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown level: expected ErrValidation, got: %v", err)
	}
	if err := v.ValidateCreateSkill([]byte(`{"skill_name":"Chess","level":"expert"}`)); !errors.Is(err, ErrValidation) {
		t.Errorf("missing rate: expected ErrValidation, got: %v", err)
	}
}
