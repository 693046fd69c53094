package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/osversion/internal/ir"
)

func zoneDef(fields ...string) TypeDef {
	td := TypeDef{Name: "OS:ThermalZone"}
	for _, f := range fields {
		td.Fields = append(td.Fields, FieldDef{Name: f, Type: ir.TypeString})
	}
	return td
}

func TestLayered_FallsBackToEarlierVersion(t *testing.T) {
	d := NewLayered()
	require.NoError(t, d.Define(ir.V(3, 9, 0), zoneDef("Name")))
	require.NoError(t, d.Define(ir.V(3, 11, 0), zoneDef("Name", "Tag")))

	tests := []struct {
		v     ir.VersionTag
		want  int
		found bool
	}{
		{ir.V(3, 8, 0), 0, false},
		{ir.V(3, 9, 0), 1, true},
		{ir.V(3, 10, 1), 1, true},
		{ir.V(3, 11, 0), 2, true},
		{ir.V(4, 0, 0), 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.v.String(), func(t *testing.T) {
			defs, ok := d.Fields(tt.v, "OS:ThermalZone")
			assert.Equal(t, tt.found, ok)
			assert.Len(t, defs, tt.want)
		})
	}

	assert.Equal(t, []ir.VersionTag{ir.V(3, 9, 0), ir.V(3, 11, 0)}, d.Versions())
}

func TestCovers(t *testing.T) {
	d := NewLayered()
	assert.False(t, Covers(d, ir.V(3, 9, 0)), "empty dictionary")
	assert.True(t, d.Latest().IsZero())

	require.NoError(t, d.Define(ir.V(3, 9, 0), zoneDef("Name")))
	require.NoError(t, d.Define(ir.V(3, 11, 0), zoneDef("Name", "Tag")))
	assert.Equal(t, ir.V(3, 11, 0), d.Latest())

	assert.True(t, Covers(d, ir.V(3, 10, 0)))
	assert.True(t, Covers(d, ir.V(3, 11, 0)))
	assert.False(t, Covers(d, ir.V(3, 12, 0)))
	assert.False(t, Covers(nil, ir.V(3, 9, 0)))
}

func TestLayered_Removed(t *testing.T) {
	d := NewLayered()
	require.NoError(t, d.Define(ir.V(3, 9, 0), zoneDef("Name")))
	require.NoError(t, d.Define(ir.V(3, 10, 0), TypeDef{Name: "OS:ThermalZone", Removed: true}))

	_, ok := d.Fields(ir.V(3, 9, 0), "OS:ThermalZone")
	assert.True(t, ok)
	_, ok = d.Fields(ir.V(3, 10, 0), "OS:ThermalZone")
	assert.False(t, ok)

	assert.Equal(t, []string{"OS:ThermalZone"}, d.Types(ir.V(3, 9, 0)))
	assert.Empty(t, d.Types(ir.V(3, 10, 0)))
}

func TestLayered_DefineErrors(t *testing.T) {
	d := NewLayered()
	require.NoError(t, d.Define(ir.V(3, 9, 0), zoneDef("Name")))

	assert.ErrorContains(t, d.Define(ir.V(3, 9, 0), zoneDef("Name")), "defined twice")
	assert.ErrorContains(t, d.Define(ir.V(3, 9, 0), TypeDef{}), "type name is required")
	assert.ErrorContains(t, d.Define(ir.V(3, 9, 1), zoneDef("Name", "Name")), "twice")
	assert.ErrorContains(t, d.Define(ir.V(3, 9, 1), TypeDef{
		Name:   "OS:Bad",
		Fields: []FieldDef{{Name: "X", Type: "blob"}},
	}), "invalid type")
}

func TestLayered_Overlay(t *testing.T) {
	base := NewLayered()
	require.NoError(t, base.Define(ir.V(3, 9, 0), zoneDef("Name")))

	extra := NewLayered()
	require.NoError(t, extra.Define(ir.V(3, 9, 0), zoneDef("Name", "Multiplier")))
	require.NoError(t, extra.Define(ir.V(3, 12, 0), TypeDef{Name: "OS:Space", Fields: []FieldDef{{Name: "Name", Type: ir.TypeString}}}))

	base.Overlay(extra)

	defs, ok := base.Fields(ir.V(3, 9, 0), "OS:ThermalZone")
	require.True(t, ok)
	assert.Equal(t, []string{"Name", "Multiplier"}, Names(defs))
	_, ok = base.Fields(ir.V(3, 12, 0), "OS:Space")
	assert.True(t, ok)
}

func TestCheck(t *testing.T) {
	defs := []FieldDef{
		{Name: "Name", Type: ir.TypeString},
		{Name: "Capacity", Type: ir.TypeReal},
		{Name: "Zone", Type: ir.TypeReference},
	}

	ok := ir.Record{Type: "OS:Coil", Fields: []ir.Field{
		ir.F("Name", ir.Text("C")), ir.F("Capacity", ir.Autosize), ir.F("Zone", ir.Empty{}),
	}}
	idx, err := Check(defs, ok)
	assert.NoError(t, err)
	assert.Equal(t, -1, idx)

	short := ok.Clone()
	short.Fields = short.Fields[:2]
	idx, err = Check(defs, short)
	assert.ErrorContains(t, err, "has 2 fields, schema declares 3")
	assert.Equal(t, -1, idx)

	wrong := ok.Clone()
	wrong.Fields[1].Value = ir.Text("big")
	idx, err = Check(defs, wrong)
	assert.Error(t, err)
	assert.Equal(t, 1, idx)
}

func TestFieldDef_Helpers(t *testing.T) {
	d := FieldDef{Name: "Method", Type: ir.TypeChoice, Choices: []string{"A", "B"}}
	assert.True(t, d.HasChoice("B"))
	assert.False(t, d.HasChoice("C"))
	assert.Equal(t, ir.Empty{}, d.DefaultValue())

	d.Default = ir.Token("A")
	assert.Equal(t, ir.Token("A"), d.DefaultValue())

	defs := []FieldDef{{Name: "a"}, {Name: "b"}}
	assert.Equal(t, 1, IndexOf(defs, "b"))
	assert.Equal(t, -1, IndexOf(defs, "z"))
}
