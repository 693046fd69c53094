package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/schema"
)

func TestCompileDictionaryBasic(t *testing.T) {
	v, err := Parse(cuecontext.New(), "base.cue", []byte(`
		version: "3.10.1"
		types: [{
			name: "OS:Controller:MechanicalVentilation"
			fields: [
				{name: "Name", type: "string"},
				{name: "Availability Schedule", type: "reference"},
				{name: "Demand Controlled Ventilation", type: "boolean", default: "No"},
				{name: "Outdoor Air Method", type: "choice", choices: ["ZoneSum", "VentilationRateProcedure"], default: "ZoneSum"},
				{name: "Minimum Outdoor Air Flow", type: "real", default: "Autosize"},
				{name: "Count", type: "integer", default: 3},
				{name: "Ratio", type: "real", default: 0.5},
			]
		}, {
			name: "OS:Gone", removed: true
		}]
	`))
	require.NoError(t, err)

	layer, err := CompileDictionary(v)
	require.NoError(t, err)

	assert.Equal(t, ir.V(3, 10, 1), layer.Version)
	require.Len(t, layer.Types, 2)

	mv := layer.Types[0]
	assert.Equal(t, "OS:Controller:MechanicalVentilation", mv.Name)
	require.Len(t, mv.Fields, 7)
	assert.Equal(t, ir.TypeReference, mv.Fields[1].Type)
	assert.Nil(t, mv.Fields[1].Default)
	assert.Equal(t, ir.Bool(false), mv.Fields[2].Default)
	assert.Equal(t, ir.Token("ZoneSum"), mv.Fields[3].Default)
	assert.Equal(t, []string{"ZoneSum", "VentilationRateProcedure"}, mv.Fields[3].Choices)
	assert.Equal(t, ir.Autosize, mv.Fields[4].Default)
	assert.Equal(t, ir.Integer(3), mv.Fields[5].Default)
	assert.Equal(t, ir.Real(0.5), mv.Fields[6].Default)

	assert.True(t, layer.Types[1].Removed)
	assert.Empty(t, ValidateDictionary(layer))
}

func TestCompileDictionaryErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"missing version", `types: []`, "version is required"},
		{"bad version", `version: "three", types: []`, "version"},
		{"missing types", `version: "1.0.0"`, "types is required"},
		{"missing type name", `version: "1.0.0", types: [{fields: []}]`, "types[0].name"},
		{"no fields", `version: "1.0.0", types: [{name: "OS:A"}]`, "needs fields or removed"},
		{"removed with fields", `version: "1.0.0", types: [{name: "OS:A", removed: true, fields: []}]`, "cannot declare fields"},
		{"bad field type", `version: "1.0.0", types: [{name: "OS:A", fields: [{name: "X", type: "float"}]}]`, `invalid field type "float"`},
		{"bad default", `version: "1.0.0", types: [{name: "OS:A", fields: [{name: "X", type: "real", default: "lots"}]}]`, "not a real number"},
		{"struct default", `version: "1.0.0", types: [{name: "OS:A", fields: [{name: "X", type: "string", default: {a: 1}}]}]`, "expected a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(nil, "bad.cue", []byte(tt.src))
			require.NoError(t, err)

			_, err = CompileDictionary(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompileDictionaryErrorPosition(t *testing.T) {
	v, err := Parse(nil, "pos.cue", []byte("version: \"1.0.0\"\ntypes: [{name: \"OS:A\", fields: [{name: \"X\", type: \"nope\"}]}]\n"))
	require.NoError(t, err)

	_, err = CompileDictionary(v)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "types[0].fields[0].type", ce.Field)
	assert.True(t, ce.Pos.IsValid())
	assert.Equal(t, 2, ce.Pos.Line())
	assert.Contains(t, err.Error(), "pos.cue:2:")
}

func TestDictionaryLayerDefineInto(t *testing.T) {
	base, err := Parse(nil, "base.cue", []byte(`
		version: "1.0.0"
		types: [{name: "OS:A", fields: [{name: "Name", type: "string"}]}]
	`))
	require.NoError(t, err)
	next, err := Parse(nil, "next.cue", []byte(`
		version: "1.1.0"
		types: [{name: "OS:A", removed: true}, {name: "OS:B", fields: [{name: "Name", type: "string"}]}]
	`))
	require.NoError(t, err)

	d := schema.NewLayered()
	for _, v := range []cue.Value{base, next} {
		layer, err := CompileDictionary(v)
		require.NoError(t, err)
		require.NoError(t, layer.DefineInto(d))
	}

	_, ok := d.Fields(ir.V(1, 0, 5), "OS:A")
	assert.True(t, ok)
	_, ok = d.Fields(ir.V(1, 1, 0), "OS:A")
	assert.False(t, ok)
	assert.Equal(t, []string{"OS:B"}, d.Types(ir.V(2, 0, 0)))
}
