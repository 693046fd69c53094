package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalModel = `OS:Version,
  {00000000-0000-4000-8000-000000000000}, !- Handle
  3.10.0;                                 !- Version Identifier
`

// writeScenario writes content to dir/test.yaml and returns the path.
func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: test_scenario
description: "Test scenario for validation"
model: |
  OS:Version,
    {00000000-0000-4000-8000-000000000000}, !- Handle
    3.10.0;                                 !- Version Identifier
target: 3.10.1
expect:
  version: 3.10.1
  modified: 0
assertions:
  - type: record_count
    record_type: OS:Version
    count: 1
golden: true
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, minimalModel, scenario.Model)
	assert.Equal(t, "3.10.1", scenario.Target)
	require.NotNil(t, scenario.Expect.Modified)
	assert.Equal(t, 0, *scenario.Expect.Modified)
	assert.Nil(t, scenario.Expect.Added)
	assert.Len(t, scenario.Assertions, 1)
	assert.True(t, scenario.Golden)
}

func TestLoadScenario_ModelFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.osm"), []byte(minimalModel), 0644))
	path := writeScenario(t, dir, `
name: from_file
description: "Model read from a sibling file"
model_file: model.osm
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, minimalModel, scenario.Model)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nmodel: x\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nmodel: x\n",
			wantErr: "description is required",
		},
		{
			name:    "missing model",
			content: "name: n\ndescription: d\n",
			wantErr: "model or model_file is required",
		},
		{
			name:    "missing model file",
			content: "name: n\ndescription: d\nmodel_file: nope.osm\n",
			wantErr: "model file",
		},
		{
			name:    "unknown field",
			content: "name: n\ndescription: d\nmodel: x\nassertion: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "bad target",
			content: "name: n\ndescription: d\nmodel: x\ntarget: latest\n",
			wantErr: "target",
		},
		{
			name:    "unknown error code",
			content: "name: n\ndescription: d\nmodel: x\nexpect:\n  error: BROKEN\n",
			wantErr: `unknown error code "BROKEN"`,
		},
		{
			name:    "error with assertions",
			content: "name: n\ndescription: d\nmodel: x\nexpect:\n  error: INVALID_STEP\nassertions:\n  - type: idempotent\n",
			wantErr: "expect.error excludes assertions",
		},
		{
			name:    "unknown assertion type",
			content: "name: n\ndescription: d\nmodel: x\nassertions:\n  - type: trace_contains\n",
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name:    "field_equals without field",
			content: "name: n\ndescription: d\nmodel: x\nassertions:\n  - type: field_equals\n    handle: \"{00000000-0000-4000-8000-000000000001}\"\n",
			wantErr: "handle and field are required",
		},
		{
			name:    "bad handle",
			content: "name: n\ndescription: d\nmodel: x\nassertions:\n  - type: record_absent\n    handle: zone-1\n",
			wantErr: "is not a handle",
		},
		{
			name:    "unknown entry kind",
			content: "name: n\ndescription: d\nmodel: x\nassertions:\n  - type: entry_count\n    kind: field-moved\n",
			wantErr: `unknown entry kind "field-moved"`,
		},
		{
			name:    "negative count",
			content: "name: n\ndescription: d\nmodel: x\nassertions:\n  - type: record_count\n    record_type: OS:Version\n    count: -1\n",
			wantErr: "count must be non-negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content), t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c.yaml"), 0755))

	paths, err := FindScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, paths)

	_, err = FindScenarios(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
