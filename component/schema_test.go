package component

import (
	"reflect"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

// TestValidateConfigRequiredFields tests required field validation
// Given: Schema with required=["threshold"], config without threshold
// When: ValidateConfig called
// Then: Returns ValidationError for missing required field
func TestValidateConfigRequiredFields(t *testing.T) {
	schema := ConfigSchema{
		Properties: map[string]PropertySchema{
			"threshold": {
				Type:        "float",
				Description: "Toxicity threshold",
			},
		},
		Required: []string{"threshold"},
	}

	config := map[string]any{
		// Missing required "threshold" field
	}

	errors := ValidateConfig(config, schema)

	if len(errors) != 1 {
		t.Fatalf("Expected 1 error, got %d", len(errors))
	}
	if errors[0].Field != "threshold" {
		t.Errorf("Expected error on field 'threshold', got %q", errors[0].Field)
	}
	if errors[0].Code != "required" {
		t.Errorf("Expected error code 'required', got %q", errors[0].Code)
	}
}

// TestValidateConfigMinMax tests numeric min/max validation
// Given: Schema with threshold min=0, max=1
// When: ValidateConfig with out-of-range values
// Then: Returns appropriate ValidationErrors
func TestValidateConfigMinMax(t *testing.T) {
	schema := ConfigSchema{
		Properties: map[string]PropertySchema{
			"threshold": {
				Type:    "float",
				Minimum: floatPtr(0),
				Maximum: floatPtr(1),
			},
		},
	}

	tests := []struct {
		name     string
		value    any
		wantCode string
	}{
		{"below minimum", -0.5, "min"},
		{"above maximum", 1.5, "max"},
		{"at minimum", 0.0, ""},
		{"at maximum", 1.0, ""},
		{"in range", 0.8, ""},
		{"integer in range", 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := ValidateConfig(map[string]any{"threshold": tt.value}, schema)

			if tt.wantCode == "" {
				if len(errors) != 0 {
					t.Errorf("Expected no errors, got %v", errors)
				}
				return
			}

			if len(errors) != 1 {
				t.Fatalf("Expected 1 error, got %d", len(errors))
			}
			if errors[0].Code != tt.wantCode {
				t.Errorf("Expected code %q, got %q", tt.wantCode, errors[0].Code)
			}
		})
	}
}

// TestValidateConfigEnum tests enum value validation
func TestValidateConfigEnum(t *testing.T) {
	schema := ConfigSchema{
		Properties: map[string]PropertySchema{
			"type": {
				Type: "enum",
				Enum: []string{"text", "image", "text-and-image"},
			},
		},
	}

	valid := ValidateConfig(map[string]any{"type": "text"}, schema)
	if len(valid) != 0 {
		t.Errorf("Expected no errors for valid enum value, got %v", valid)
	}

	invalid := ValidateConfig(map[string]any{"type": "video"}, schema)
	if len(invalid) != 1 {
		t.Fatalf("Expected 1 error, got %d", len(invalid))
	}
	if invalid[0].Code != "enum" {
		t.Errorf("Expected code 'enum', got %q", invalid[0].Code)
	}
}

// TestValidateConfigTypes tests type checking for each schema type
func TestValidateConfigTypes(t *testing.T) {
	schema := ConfigSchema{
		Properties: map[string]PropertySchema{
			"text":    {Type: "string"},
			"count":   {Type: "int"},
			"enabled": {Type: "bool"},
			"alpha":   {Type: "float"},
		},
	}

	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
	}{
		{"valid string", map[string]any{"text": "hello"}, false},
		{"invalid string", map[string]any{"text": 42}, true},
		{"valid int", map[string]any{"count": 10}, false},
		{"json number as int", map[string]any{"count": float64(10)}, false},
		{"invalid int", map[string]any{"count": "ten"}, true},
		{"valid bool", map[string]any{"enabled": true}, false},
		{"invalid bool", map[string]any{"enabled": "yes"}, true},
		{"valid float", map[string]any{"alpha": 0.9}, false},
		{"int as float", map[string]any{"alpha": 1}, false},
		{"invalid float", map[string]any{"alpha": "high"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := ValidateConfig(tt.config, schema)
			if tt.wantErr && len(errors) == 0 {
				t.Error("Expected validation error, got none")
			}
			if !tt.wantErr && len(errors) != 0 {
				t.Errorf("Expected no errors, got %v", errors)
			}
		})
	}
}

// TestValidateConfigUnknownFields tests lenient handling of unknown fields
// Given: Config with a field not in the schema
// When: ValidateConfig called
// Then: No errors (unknown fields allowed for forward compatibility)
func TestValidateConfigUnknownFields(t *testing.T) {
	schema := ConfigSchema{
		Properties: map[string]PropertySchema{
			"threshold": {Type: "float"},
		},
	}

	config := map[string]any{
		"threshold":    0.8,
		"future_field": "whatever",
	}

	errors := ValidateConfig(config, schema)
	if len(errors) != 0 {
		t.Errorf("Expected unknown fields to be allowed, got %v", errors)
	}
}

// TestGetPropertyValue tests safe property extraction
func TestGetPropertyValue(t *testing.T) {
	config := map[string]any{"threshold": 0.8}

	value, exists := GetPropertyValue(config, "threshold")
	if !exists || value != 0.8 {
		t.Errorf("Expected (0.8, true), got (%v, %v)", value, exists)
	}

	_, exists = GetPropertyValue(config, "missing")
	if exists {
		t.Error("Expected missing key to report false")
	}

	_, exists = GetPropertyValue(nil, "threshold")
	if exists {
		t.Error("Expected nil config to report false")
	}
}

// TestGetProperties tests category filtering
func TestGetProperties(t *testing.T) {
	schema := ConfigSchema{
		Properties: map[string]PropertySchema{
			"threshold": {Type: "float", Category: "basic"},
			"alpha":     {Type: "float", Category: "advanced"},
			"timeout":   {Type: "int"}, // Defaults to "advanced"
		},
	}

	basic := GetProperties(schema, "basic")
	if len(basic) != 1 {
		t.Errorf("Expected 1 basic property, got %d", len(basic))
	}
	if _, ok := basic["threshold"]; !ok {
		t.Error("Expected 'threshold' in basic properties")
	}

	advanced := GetProperties(schema, "advanced")
	if len(advanced) != 2 {
		t.Errorf("Expected 2 advanced properties, got %d", len(advanced))
	}

	all := GetProperties(schema, "")
	if len(all) != 3 {
		t.Errorf("Expected 3 properties with no filter, got %d", len(all))
	}
}

// TestSortedPropertyNames tests UI display ordering
func TestSortedPropertyNames(t *testing.T) {
	schema := ConfigSchema{
		Properties: map[string]PropertySchema{
			"threshold": {Category: "basic"},
			"enabled":   {Category: "basic"},
			"alpha":     {Category: "advanced"},
			"timeout":   {}, // Defaults to "advanced"
		},
	}

	got := SortedPropertyNames(schema)
	want := []string{"enabled", "threshold", "alpha", "timeout"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected order %v, got %v", want, got)
	}
}

// TestIsComplexType tests complex type identification
func TestIsComplexType(t *testing.T) {
	if !IsComplexType("object") || !IsComplexType("array") {
		t.Error("Expected object and array to be complex")
	}
	if IsComplexType("string") || IsComplexType("float") {
		t.Error("Expected scalar types to not be complex")
	}
}

// TestDecodeParams tests partial parameter application
func TestDecodeParams(t *testing.T) {
	type config struct {
		Threshold float64 `json:"threshold"`
		Alpha     float64 `json:"alpha"`
		Limit     int     `json:"limit"`
	}

	cfg := config{Threshold: 0.8, Alpha: 0.9, Limit: 10}

	// Partial update: absent keys keep their values
	err := DecodeParams(map[string]any{"threshold": 0.5}, &cfg)
	if err != nil {
		t.Fatalf("DecodeParams failed: %v", err)
	}
	if cfg.Threshold != 0.5 {
		t.Errorf("Expected threshold 0.5, got %v", cfg.Threshold)
	}
	if cfg.Alpha != 0.9 || cfg.Limit != 10 {
		t.Errorf("Expected untouched fields to keep values, got %+v", cfg)
	}

	// JSON numbers decode into int fields
	err = DecodeParams(map[string]any{"limit": float64(25)}, &cfg)
	if err != nil {
		t.Fatalf("DecodeParams failed: %v", err)
	}
	if cfg.Limit != 25 {
		t.Errorf("Expected limit 25, got %d", cfg.Limit)
	}

	// Empty map is a no-op
	if err := DecodeParams(nil, &cfg); err != nil {
		t.Errorf("Expected nil params to succeed, got %v", err)
	}

	// Type mismatches surface as errors
	if err := DecodeParams(map[string]any{"threshold": "high"}, &cfg); err == nil {
		t.Error("Expected error for mistyped parameter")
	}
}

// TestConfigMap tests config struct rendering
func TestConfigMap(t *testing.T) {
	type config struct {
		Threshold float64 `json:"threshold"`
		Enabled   bool    `json:"enabled"`
	}

	got := ConfigMap(config{Threshold: 0.8, Enabled: true})
	if got["threshold"] != 0.8 {
		t.Errorf("Expected threshold 0.8, got %v", got["threshold"])
	}
	if got["enabled"] != true {
		t.Errorf("Expected enabled true, got %v", got["enabled"])
	}

	// Non-struct input degrades to an empty map
	if m := ConfigMap(42); len(m) != 0 {
		t.Errorf("Expected empty map for scalar input, got %v", m)
	}
}
