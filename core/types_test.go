package core

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIError_JSON(t *testing.T) {
	err := Wrap(ErrInvalidConfig, "bad", os.ErrInvalid)
	ce, ok := err.(CLIError)
	if !ok {
		t.Fatalf("wrap did not return CLIError")
	}
	raw := ce.JSON()
	var decoded map[string]string
	if json.Unmarshal([]byte(raw), &decoded) != nil {
		t.Fatalf("json unmarshal failed")
	}
	if decoded["code"] != ErrInvalidConfig {
		t.Fatalf("wrong code json: %v", decoded)
	}
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "main.ql:3:7", Location{File: "main.ql", Line: 3, Column: 7}.String())
	assert.Equal(t, "3:7", Location{Line: 3, Column: 7}.String())
	assert.True(t, Location{}.IsZero())
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{
		Kind:     DiagType,
		Message:  "expected int, found string",
		Location: Location{File: "a.ql", Line: 1, Column: 5},
	}
	assert.Equal(t, "a.ql:1:5: error: expected int, found string", d.String())

	d.Kind = DiagWarning
	d.Suggestion = "try list<int>"
	assert.Contains(t, d.String(), "warning")
	assert.Contains(t, d.String(), "\n\ttry list<int>")
}
