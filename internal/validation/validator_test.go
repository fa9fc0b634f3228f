package validation

import (
	"testing"
)

type sampleRequest struct {
	Name  string `validate:"required,min=3,max=10"`
	Email string `validate:"required,email"`
	Port  int    `validate:"min=1,max=65535"`
}

func TestValidateAccepts(t *testing.T) {
	v := NewValidator()

	err := v.Validate(sampleRequest{Name: "Bay 1", Email: "ops@example.com", Port: 9100})
	if err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	v := NewValidator()

	cases := []struct {
		name string
		req  sampleRequest
	}{
		{"missing name", sampleRequest{Email: "ops@example.com", Port: 1}},
		{"short name", sampleRequest{Name: "ab", Email: "ops@example.com", Port: 1}},
		{"long name", sampleRequest{Name: "much too long name", Email: "ops@example.com", Port: 1}},
		{"bad email", sampleRequest{Name: "Bay 1", Email: "not-an-email", Port: 1}},
		{"port too large", sampleRequest{Name: "Bay 1", Email: "ops@example.com", Port: 70000}},
	}

	for _, tc := range cases {
		if err := v.Validate(tc.req); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
}

func TestValidatePointer(t *testing.T) {
	v := NewValidator()

	req := &sampleRequest{Name: "Bay 1", Email: "ops@example.com", Port: 1}
	if err := v.Validate(req); err != nil {
		t.Errorf("pointer input rejected: %v", err)
	}
}

func TestValidateNonStruct(t *testing.T) {
	v := NewValidator()

	if err := v.Validate("not a struct"); err == nil {
		t.Error("expected an error for non-struct input")
	}
}
