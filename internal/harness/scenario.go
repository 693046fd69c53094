package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/report"
)

// Scenario defines one translation and its expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the input model text.
	Model string `yaml:"model,omitempty"`

	// ModelFile is read into Model when Model is empty.
	// Relative paths are resolved against the scenario file.
	ModelFile string `yaml:"model_file,omitempty"`

	// Target is the version to translate to. Defaults to the latest
	// version the catalog reaches.
	Target string `yaml:"target,omitempty"`

	// Strict enables input validation before the first step.
	Strict bool `yaml:"strict,omitempty"`

	// Expect describes the overall outcome.
	Expect Expect `yaml:"expect"`

	// Assertions check the output and the report.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Golden compares the rendered report with testdata/golden/{Name}.golden.
	Golden bool `yaml:"golden,omitempty"`
}

// Expect is the overall outcome of a scenario.
type Expect struct {
	// Error is the expected error code. When set the translation must
	// fail with it and no other checks apply.
	Error string `yaml:"error,omitempty"`

	// Version is the expected output version.
	Version string `yaml:"version,omitempty"`

	// Record counts from the report; nil skips the check.
	Added    *int `yaml:"added,omitempty"`
	Removed  *int `yaml:"removed,omitempty"`
	Modified *int `yaml:"modified,omitempty"`
	Warnings *int `yaml:"warnings,omitempty"`
}

// Assertion validates the output workspace or the report.
type Assertion struct {
	// Type specifies the assertion type:
	// - "field_equals": Handle, Field, Value
	// - "record_count": RecordType, Count
	// - "record_absent": Handle
	// - "entry_count": Kind, Count
	// - "idempotent": no arguments
	Type string `yaml:"type"`

	Handle     string `yaml:"handle,omitempty"`
	Field      string `yaml:"field,omitempty"`
	Value      string `yaml:"value,omitempty"`
	RecordType string `yaml:"record_type,omitempty"`
	Kind       string `yaml:"kind,omitempty"`
	Count      int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFieldEquals  = "field_equals"
	AssertRecordCount  = "record_count"
	AssertRecordAbsent = "record_absent"
	AssertEntryCount   = "entry_count"
	AssertIdempotent   = "idempotent"
)

var knownErrorCodes = map[string]bool{
	string(ir.ErrCodeNoTranslationPath):        true,
	string(ir.ErrCodeUnsupportedFutureVersion): true,
	string(ir.ErrCodeMalformedRecord):          true,
	string(ir.ErrCodeDanglingReference):        true,
	string(ir.ErrCodeInvalidStep):              true,
}

var knownKinds = map[report.Kind]bool{
	report.KindFieldInserted:     true,
	report.KindFieldDeleted:      true,
	report.KindFieldRenamed:      true,
	report.KindFieldRetyped:      true,
	report.KindEnumRemapped:      true,
	report.KindUnmappedEnumValue: true,
	report.KindTypeRenamed:       true,
	report.KindRecordSplit:       true,
	report.KindRecordMerged:      true,
	report.KindReferenceRemapped: true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML. A relative model_file is resolved
// against basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Model == "" && scenario.ModelFile != "" {
		path := scenario.ModelFile
		if !filepath.IsAbs(path) && basePath != "" {
			path = filepath.Join(basePath, path)
		}
		model, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("invalid scenario: model file: %w", err)
		}
		scenario.Model = string(model)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml files directly under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Model == "" {
		return fmt.Errorf("model or model_file is required")
	}
	if s.Target != "" {
		if _, err := ir.ParseVersion(s.Target); err != nil {
			return fmt.Errorf("target: %w", err)
		}
	}
	if s.Expect.Version != "" {
		if _, err := ir.ParseVersion(s.Expect.Version); err != nil {
			return fmt.Errorf("expect.version: %w", err)
		}
	}

	if s.Expect.Error != "" {
		if !knownErrorCodes[s.Expect.Error] {
			return fmt.Errorf("expect.error: unknown error code %q", s.Expect.Error)
		}
		if len(s.Assertions) > 0 || s.Golden {
			return fmt.Errorf("expect.error excludes assertions and golden")
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFieldEquals:
		if a.Handle == "" || a.Field == "" {
			return fmt.Errorf("assertions[%d]: handle and field are required for field_equals", index)
		}
	case AssertRecordCount:
		if a.RecordType == "" {
			return fmt.Errorf("assertions[%d]: record_type is required for record_count", index)
		}
	case AssertRecordAbsent:
		if a.Handle == "" {
			return fmt.Errorf("assertions[%d]: handle is required for record_absent", index)
		}
	case AssertEntryCount:
		if !knownKinds[report.Kind(a.Kind)] {
			return fmt.Errorf("assertions[%d]: unknown entry kind %q", index, a.Kind)
		}
	case AssertIdempotent:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	if a.Handle != "" && !ir.IsHandle(a.Handle) {
		return fmt.Errorf("assertions[%d]: %q is not a handle", index, a.Handle)
	}
	return nil
}
