package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type inviteBody struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=admin editor viewer"`
}

type orderItem struct {
	ID    string `json:"id" validate:"required,uuid"`
	Order *int   `json:"order" validate:"required,gte=0"`
}

type reorderBody struct {
	StageOrders []orderItem `json:"stageOrders" validate:"required,min=1,dive"`
}

type renameBody struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=10"`
}

func TestCheck(t *testing.T) {
	zero := 0
	long := "a much longer name"

	tests := []struct {
		name     string
		input    any
		expected map[string]string
	}{
		{
			name:  "valid",
			input: inviteBody{Email: "bob@example.com", Role: "editor"},
		},
		{
			name:  "missing_fields",
			input: inviteBody{},
			expected: map[string]string{
				"email": "This field is required",
				"role":  "This field is required",
			},
		},
		{
			name:  "bad_values",
			input: inviteBody{Email: "not-an-email", Role: "owner"},
			expected: map[string]string{
				"email": "Invalid email format",
				"role":  "Must be one of: admin editor viewer",
			},
		},
		{
			name:  "nested_items",
			input: reorderBody{StageOrders: []orderItem{{ID: "nope", Order: &zero}, {ID: "2c4f8a4e-5f43-4b8e-9a43-2f0f0e8b1a11"}}},
			expected: map[string]string{
				"stageOrders[0].id":    "Invalid UUID format",
				"stageOrders[1].order": "This field is required",
			},
		},
		{
			name:     "empty_list",
			input:    reorderBody{StageOrders: []orderItem{}},
			expected: map[string]string{"stageOrders": "Must contain at least 1 items"},
		},
		{
			name:  "absent_optional",
			input: renameBody{},
		},
		{
			name:     "present_optional",
			input:    renameBody{Name: &long},
			expected: map[string]string{"name": "Must be at most 10 characters"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Check(tt.input))
		})
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean_text", "Hello World", "Hello World"},
		{"null_bytes", "Hello\x00World", "HelloWorld"},
		{"control_chars", "Hello\x01\x02World", "HelloWorld"},
		{"keep_newlines", "Hello\nWorld", "Hello\nWorld"},
		{"keep_tabs", "Hello\tWorld", "Hello\tWorld"},
		{"keep_carriage_return", "Hello\rWorld", "Hello\rWorld"},
		{"mixed", "Hello\x00\x01\nWorld\t!", "Hello\nWorld\t!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeString(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
