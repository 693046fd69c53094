package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/rule"
	"github.com/roach88/osversion/internal/schema"
)

func testFuncs() *rule.Funcs {
	f := &rule.Funcs{}
	f.RegisterCompute("double", func(src rule.Source) (ir.Value, error) {
		if x, ok := src.Real("Capacity"); ok {
			return ir.Real(2 * x), nil
		}
		return ir.Autosize, nil
	})
	f.RegisterCoerce("truncate", func(v ir.Value, to ir.FieldType) (ir.Value, error) {
		return ir.Coerce(v, to)
	})
	f.RegisterSplit("splitBoard", func(r ir.Record, newHandle rule.NewHandleFunc) ([]ir.Record, error) {
		return []ir.Record{r}, nil
	})
	f.RegisterMerge("first", func(group []ir.Record, h ir.Handle) (ir.Record, error) {
		out := group[0].Clone()
		out.Handle = h
		return out, nil
	})
	f.RegisterKey("byName", func(r ir.Record) (string, bool) {
		return r.Fields[0].Value.Text(), true
	})
	return f
}

func stepDict(t *testing.T) *schema.Layered {
	t.Helper()
	d := schema.NewLayered()
	require.NoError(t, d.Define(ir.V(1, 1, 0), schema.TypeDef{Name: "OS:Cooler", Fields: []schema.FieldDef{
		{Name: "Name", Type: ir.TypeString},
		{Name: "Water Temperature", Type: ir.TypeReal},
		{Name: "Label", Type: ir.TypeString},
	}}))
	return d
}

func TestCompileStepBasic(t *testing.T) {
	v, err := Parse(nil, "step.cue", []byte(`
		from: "1.0.0"
		to:   "1.1.0"
		records: [{
			type: "OS:Cooler"
			edits: [
				{op: "insert", index: 1, name: "Water Temperature", default: "Autosize"},
				{op: "insert", index: 2, name: "Label", default: 7},
				{op: "insert", index: 5, name: "Design Capacity", compute: "double"},
				{op: "delete", index: 3, name: "Old"},
				{op: "rename", from: "Title", to: "Name"},
				{op: "retype", index: 4, to: "real", coerce: "truncate"},
				{op: "remap", index: 6, map: {"FuelOil#1": "FuelOilNo1", PropaneGas: "Propane"}},
			]
		}]
		types: [
			{op: "rename", from: "OS:Old", to: "OS:New"},
			{op: "split", from: "OS:Board", into: ["OS:Board", "OS:Coil"], rule: "splitBoard"},
			{op: "merge", from: ["OS:Curve:A", "OS:Curve:B"], into: "OS:Curve", key: "byName", rule: "first"},
		]
	`))
	require.NoError(t, err)

	step, err := CompileStep(v, stepDict(t), testFuncs())
	require.NoError(t, err)

	assert.Equal(t, "1.0.0->1.1.0", step.Name())
	edits := step.Records["OS:Cooler"]
	require.Len(t, edits, 7)

	// Defaults follow the target layout's field types.
	assert.Equal(t, rule.InsertField{Index: 1, Name: "Water Temperature", Default: ir.Autosize}, edits[0])
	assert.Equal(t, ir.Text("7"), edits[1].(rule.InsertField).Default)

	computed := edits[2].(rule.InsertField)
	assert.Equal(t, "double", computed.ComputeName)
	require.NotNil(t, computed.Compute)
	assert.Equal(t, `insert 5 "Design Capacity" = double()`, computed.String())

	assert.Equal(t, rule.Delete(3, "Old"), edits[3])
	assert.Equal(t, rule.Rename("Title", "Name"), edits[4])

	rt := edits[5].(rule.RetypeField)
	assert.Equal(t, ir.TypeReal, rt.To)
	assert.Equal(t, "truncate", rt.CoerceName)

	remap := edits[6].(rule.RemapEnumValue)
	assert.Equal(t, map[string]string{"FuelOil#1": "FuelOilNo1", "PropaneGas": "Propane"}, remap.Map)

	require.Len(t, step.Types, 3)
	assert.Equal(t, rule.RenameType{From: "OS:Old", To: "OS:New"}, step.Types[0])
	split := step.Types[1].(rule.SplitType)
	assert.Equal(t, []string{"OS:Board", "OS:Coil"}, split.Into)
	assert.Equal(t, "splitBoard", split.RuleName)
	merge := step.Types[2].(rule.MergeTypes)
	assert.Equal(t, "byName", merge.KeyName)
	assert.Equal(t, "OS:Curve", merge.Into)
}

func TestCompileStepUntypedDefaults(t *testing.T) {
	v, err := Parse(nil, "step.cue", []byte(`
		from: "1.0.0", to: "1.1.0"
		records: [{type: "OS:Other", edits: [
			{op: "insert", index: 0, name: "A", default: 15.56},
			{op: "insert", index: 1, name: "B", default: 3},
			{op: "insert", index: 2, name: "C", default: "Autocalculate"},
			{op: "insert", index: 3, name: "D", default: "text"},
			{op: "insert", index: 4, name: "E"},
		]}]
	`))
	require.NoError(t, err)

	step, err := CompileStep(v, nil, nil)
	require.NoError(t, err)

	var got []ir.Value
	for _, e := range step.Records["OS:Other"] {
		got = append(got, e.(rule.InsertField).Default)
	}
	assert.Equal(t, []ir.Value{ir.Real(15.56), ir.Integer(3), ir.Autocalculate, ir.Text("text"), ir.Empty{}}, got)
}

func TestCompileStepErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"missing from", `to: "1.1.0"`, "from is required"},
		{"missing to", `from: "1.0.0"`, "to is required"},
		{"unknown op", `from: "1.0.0", to: "1.1.0", records: [{type: "OS:A", edits: [{op: "shuffle"}]}]`, `unknown field edit "shuffle"`},
		{"insert without index", `from: "1.0.0", to: "1.1.0", records: [{type: "OS:A", edits: [{op: "insert", name: "X"}]}]`, "insert needs an index"},
		{"default and compute", `from: "1.0.0", to: "1.1.0", records: [{type: "OS:A", edits: [{op: "insert", index: 0, name: "X", default: 1, compute: "double"}]}]`, "not both"},
		{"unknown compute", `from: "1.0.0", to: "1.1.0", records: [{type: "OS:A", edits: [{op: "insert", index: 0, name: "X", compute: "nope"}]}]`, `unknown compute function "nope"`},
		{"remap without map", `from: "1.0.0", to: "1.1.0", records: [{type: "OS:A", edits: [{op: "remap", index: 0}]}]`, "remap needs a map"},
		{"type twice", `from: "1.0.0", to: "1.1.0", records: [{type: "OS:A", edits: []}, {type: "OS:A", edits: []}]`, "listed twice"},
		{"missing edits", `from: "1.0.0", to: "1.1.0", records: [{type: "OS:A"}]`, "edits is required"},
		{"unknown type op", `from: "1.0.0", to: "1.1.0", types: [{op: "fold"}]`, `unknown type edit "fold"`},
		{"split without into", `from: "1.0.0", to: "1.1.0", types: [{op: "split", from: "OS:A", into: [], rule: "splitBoard"}]`, "at least one type"},
		{"unknown key", `from: "1.0.0", to: "1.1.0", types: [{op: "merge", from: ["OS:A"], into: "OS:B", rule: "first", key: "nope"}]`, `unknown key function "nope"`},
		{"backwards", `from: "1.1.0", to: "1.0.0"`, "INVALID_STEP"},
		{"double insert", `from: "1.0.0", to: "1.1.0", records: [{type: "OS:A", edits: [{op: "insert", index: 0, name: "X"}, {op: "insert", index: 0, name: "Y"}]}]`, "two insertions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(nil, "bad.cue", []byte(tt.src))
			require.NoError(t, err)

			_, err = CompileStep(v, nil, testFuncs())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
