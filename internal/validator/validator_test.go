package validator

import (
	"testing"
)

// TestCUEContractEnforcement checks that malformed policy input is rejected
// before it reaches the rego engine.
func TestCUEContractEnforcement(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	tests := []struct {
		name    string
		data    map[string]interface{}
		wantErr bool
	}{
		{
			name: "valid_input",
			data: map[string]interface{}{
				"files":       []interface{}{map[string]interface{}{"path": "top.v"}},
				"modules":     []interface{}{},
				"ports":       []interface{}{},
				"signals":     []interface{}{},
				"instances":   []interface{}{},
				"pins":        []interface{}{},
				"blocks":      []interface{}{},
				"drivers":     []interface{}{},
				"loads":       []interface{}{},
				"edges":       []interface{}{},
				"diagnostics": []interface{}{},
				"lint_config": map[string]interface{}{"rules": map[string]interface{}{"unused_signal": "off"}},
			},
			wantErr: false,
		},
		{
			name: "missing_relations",
			data: map[string]interface{}{
				// present fields must match; absent relations are allowed
				"signals":     []interface{}{},
				"lint_config": map[string]interface{}{"rules": map[string]interface{}{}},
			},
			wantErr: false,
		},
		{
			name: "invalid_port_direction",
			data: map[string]interface{}{
				"ports": []interface{}{
					map[string]interface{}{
						"module":    "top",
						"name":      "bad_port",
						"direction": "in", // ports use input/output/inout
						"width":     1,
						"file":      "top.v",
						"line":      1,
					},
				},
			},
			wantErr: true,
		},
		{
			name: "unknown_severity",
			data: map[string]interface{}{
				"lint_config": map[string]interface{}{"rules": map[string]interface{}{"unused_signal": "fatal"}},
			},
			wantErr: true,
		},
		{
			name: "unexpected_field",
			data: map[string]interface{}{
				"signals": []interface{}{
					map[string]interface{}{
						"module":   "top",
						"name":     "w",
						"kind":     "wire",
						"net_type": "",
						"width":    1,
						"drivers":  1,
						"loads":    0,
						"implicit": false,
						"file":     "top.v",
						"line":     3,
						"fanout":   0, // not part of the contract
					},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrorsListsEveryProblem(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}
	errs := v.ValidationErrors(map[string]interface{}{
		"modules": []interface{}{
			map[string]interface{}{"name": "", "file": "a.v", "line": -1, "is_top": true},
		},
	})
	if len(errs) == 0 {
		t.Fatalf("expected errors for name and line")
	}
	if errs := v.ValidationErrors(map[string]interface{}{"files": []interface{}{}}); errs != nil {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestOutputValidator(t *testing.T) {
	v, err := NewOutputValidator()
	if err != nil {
		t.Fatalf("new output validator: %v", err)
	}
	good := map[string]interface{}{
		"files": []interface{}{"top.v"},
		"violations": []interface{}{
			map[string]interface{}{
				"rule": "undriven_signal", "severity": "warning", "file": "top.v", "line": 3,
				"module": "top", "signal": "w", "message": "w is read but never driven",
			},
		},
		"summary": map[string]interface{}{"total_violations": 1, "errors": 0, "warnings": 1, "info": 0},
	}
	if err := v.Validate(good); err != nil {
		t.Fatalf("expected valid output, got %v", err)
	}
	bad := map[string]interface{}{
		"files":      []interface{}{},
		"violations": []interface{}{map[string]interface{}{"rule": "", "severity": "warning", "file": "", "line": 0, "message": "x"}},
		"summary":    map[string]interface{}{"total_violations": -1, "errors": 0, "warnings": 0, "info": 0},
	}
	if err := v.Validate(bad); err == nil {
		t.Fatalf("expected invalid output to fail")
	}
}
