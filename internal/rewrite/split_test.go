package rewrite

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/report"
	"github.com/roach88/osversion/internal/rule"
	"github.com/roach88/osversion/internal/schema"
)

const (
	baseboardType = "OS:ZoneHVAC:Baseboard"
	coilType      = "OS:Coil:Heating:Baseboard"
	curveA        = "OS:Curve:A"
	curveB        = "OS:Curve:B"
	curveMerged   = "OS:Curve"
)

func splitDict(t *testing.T) *schema.Layered {
	t.Helper()
	d := schema.NewLayered()
	def := func(v ir.VersionTag, name string, fields ...schema.FieldDef) {
		require.NoError(t, d.Define(v, schema.TypeDef{Name: name, Fields: fields}))
	}
	def(vOld, baseboardType, fd("Name", ir.TypeString), fd("Capacity", ir.TypeReal), fd("Fraction Radiant", ir.TypeReal))
	def(vNew, baseboardType, fd("Name", ir.TypeString), fd("Heating Coil Name", ir.TypeReference), fd("Fraction Radiant", ir.TypeReal))
	def(vNew, coilType, fd("Name", ir.TypeString), fd("Capacity", ir.TypeReal))

	def(vOld, curveA, fd("Name", ir.TypeString), fd("Coefficient", ir.TypeReal))
	def(vOld, curveB, fd("Name", ir.TypeString), fd("Coefficient", ir.TypeReal))
	def(vNew, curveMerged, fd("Name", ir.TypeString), fd("Sum", ir.TypeReal))
	return d
}

func splitBaseboard(d schema.Dictionary) rule.SplitFunc {
	return func(r ir.Record, newHandle rule.NewHandleFunc) ([]ir.Record, error) {
		src := rule.NewSource(r, []string{"Name", "Capacity", "Fraction Radiant"})
		coilDefs, _ := d.Fields(vNew, coilType)
		boardDefs, _ := d.Fields(vNew, baseboardType)

		coil := Layout(coilType, newHandle(), coilDefs, map[string]ir.Value{
			"Name":     ir.Text(src.Get("Name").Text() + " Coil"),
			"Capacity": src.Get("Capacity"),
		})
		board := Layout(baseboardType, r.Handle, boardDefs, map[string]ir.Value{
			"Name":              src.Get("Name"),
			"Heating Coil Name": ir.Ref(coil.Handle),
			"Fraction Radiant":  src.Get("Fraction Radiant"),
		})
		return []ir.Record{board, coil}, nil
	}
}

func baseboard() ir.Record {
	return ir.Record{Type: baseboardType, Handle: hCooler, Fields: []ir.Field{
		ir.F("Name", ir.Text("BB")),
		ir.F("Capacity", ir.Autosize),
		ir.F("Fraction Radiant", ir.Real(0.3)),
	}}
}

func handles(hs ...ir.Handle) rule.NewHandleFunc {
	i := 0
	return func() ir.Handle {
		h := hs[i]
		i++
		return h
	}
}

func TestSplit_PrimaryKeepsHandle(t *testing.T) {
	d := splitDict(t)
	edit := rule.SplitType{From: baseboardType, Into: []string{baseboardType, coilType}, Rule: splitBaseboard(d)}
	step := rule.NewStep(vOld, vNew).Type(edit)

	out, err := New(d).Split(step, edit, baseboard(), handles(hNew1))
	require.NoError(t, err)

	require.Len(t, out.Records, 2)
	assert.Equal(t, hCooler, out.Records[0].Handle)
	assert.Equal(t, ir.Ref(hNew1), out.Records[0].Fields[1].Value)
	assert.Equal(t, coilType, out.Records[1].Type)
	assert.Equal(t, ir.Text("BB Coil"), out.Records[1].Fields[0].Value)
	assert.Equal(t, ir.Autosize, out.Records[1].Fields[1].Value)

	assert.Empty(t, out.Remaps, "primary kept the handle, no remap needed")
	require.Len(t, out.Entries, 1)
	assert.Equal(t, report.KindRecordSplit, out.Entries[0].Kind)
	assert.True(t, out.Changed)
}

func TestSplit_NewPrimaryRemapsOldHandle(t *testing.T) {
	d := splitDict(t)
	inner := splitBaseboard(d)
	edit := rule.SplitType{From: baseboardType, Into: []string{baseboardType, coilType}, Rule: func(r ir.Record, nh rule.NewHandleFunc) ([]ir.Record, error) {
		outs, err := inner(r, nh)
		if err != nil {
			return nil, err
		}
		outs[0].Handle = nh()
		return outs, nil
	}}
	step := rule.NewStep(vOld, vNew).Type(edit)

	out, err := New(d).Split(step, edit, baseboard(), handles(hNew1, hNew2))
	require.NoError(t, err)
	require.Len(t, out.Remaps, 1)
	assert.Equal(t, hCooler, out.Remaps[0].Old)
	assert.Equal(t, []ir.Handle{hNew2, hNew1}, out.Remaps[0].New)
	assert.Equal(t, hNew2, out.Remaps[0].Primary())
}

func TestSplit_RuleErrors(t *testing.T) {
	d := splitDict(t)
	rw := New(d)

	tests := []struct {
		name string
		fn   rule.SplitFunc
		into []string
	}{
		{"rule error", func(ir.Record, rule.NewHandleFunc) ([]ir.Record, error) { return nil, fmt.Errorf("boom") }, []string{baseboardType}},
		{"no outputs", func(ir.Record, rule.NewHandleFunc) ([]ir.Record, error) { return nil, nil }, []string{baseboardType}},
		{"undeclared output type", splitBaseboard(d), []string{baseboardType}},
		{"reused source handle", func(r ir.Record, nh rule.NewHandleFunc) ([]ir.Record, error) {
			outs, _ := splitBaseboard(d)(r, nh)
			outs[1].Handle = r.Handle
			return outs, nil
		}, []string{baseboardType, coilType}},
		{"output not conforming", func(r ir.Record, nh rule.NewHandleFunc) ([]ir.Record, error) {
			return []ir.Record{r}, nil
		}, []string{baseboardType}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edit := rule.SplitType{From: baseboardType, Into: tt.into, Rule: tt.fn}
			step := rule.NewStep(vOld, vNew).Type(edit)
			_, err := rw.Split(step, edit, baseboard(), handles(hNew1, hNew2))
			require.Error(t, err)
			assert.True(t, ir.IsInvalidStep(err), "got %v", err)
		})
	}
}

func curveKey(r ir.Record) (string, bool) {
	name := r.Fields[0].Value.Text()
	if name == "" {
		return "", false
	}
	return name, true
}

func mergeCurves(group []ir.Record, h ir.Handle) (ir.Record, error) {
	sum := 0.0
	for _, r := range group {
		if c, ok := r.Fields[1].Value.(ir.Real); ok {
			sum += float64(c)
		}
	}
	return ir.Record{Type: curveMerged, Handle: h, Fields: []ir.Field{
		ir.F("Name", group[0].Fields[0].Value),
		ir.F("Sum", ir.Real(sum)),
	}}, nil
}

func curve(typ string, h ir.Handle, name string, c float64) ir.Record {
	nameVal := ir.Value(ir.Text(name))
	if name == "" {
		nameVal = ir.Empty{}
	}
	return ir.Record{Type: typ, Handle: h, Fields: []ir.Field{ir.F("Name", nameVal), ir.F("Coefficient", ir.Real(c))}}
}

func TestGroups(t *testing.T) {
	edit := rule.MergeTypes{From: []string{curveA, curveB}, Into: curveMerged, Key: curveKey, Rule: mergeCurves}
	records := []ir.Record{
		curve(curveA, "{a}", "fan", 1),
		{Type: "OS:ThermalZone", Handle: "{z}"},
		curve(curveB, "{b}", "pump", 2),
		curve(curveB, "{c}", "fan", 3),
		curve(curveA, "{d}", "", 4),
	}

	groups := Groups(edit, records)
	assert.Equal(t, []Group{
		{Key: "fan", Members: []int{0, 3}},
		{Key: "pump", Members: []int{2}},
		{Members: []int{4}},
	}, groups)
}

func TestMerge(t *testing.T) {
	d := splitDict(t)
	edit := rule.MergeTypes{From: []string{curveA, curveB}, Into: curveMerged, Key: curveKey, Rule: mergeCurves}
	step := rule.NewStep(vOld, vNew).Type(edit)
	group := []ir.Record{curve(curveA, hInlet, "fan", 1), curve(curveB, hOutlet, "fan", 2.5)}

	out, err := New(d).Merge(step, edit, group, hNew1)
	require.NoError(t, err)

	require.Len(t, out.Records, 1)
	assert.Equal(t, hNew1, out.Records[0].Handle)
	assert.Equal(t, ir.Real(3.5), out.Records[0].Fields[1].Value)
	require.Len(t, out.Remaps, 2)
	assert.Equal(t, hInlet, out.Remaps[0].Old)
	assert.Equal(t, hNew1, out.Remaps[1].Primary())
	require.Len(t, out.Entries, 1)
	assert.Equal(t, report.KindRecordMerged, out.Entries[0].Kind)
	assert.Equal(t, string(hInlet)+", "+string(hOutlet), out.Entries[0].Old)
}

func TestMerge_Errors(t *testing.T) {
	d := splitDict(t)
	rw := New(d)
	group := []ir.Record{curve(curveA, hInlet, "fan", 1)}

	wrongType := rule.MergeTypes{From: []string{curveA}, Into: curveA, Key: curveKey, Rule: mergeCurves}
	_, err := rw.Merge(rule.NewStep(vOld, vNew).Type(wrongType), wrongType, group, hNew1)
	assert.True(t, ir.IsInvalidStep(err))

	otherHandle := rule.MergeTypes{From: []string{curveA}, Into: curveMerged, Key: curveKey,
		Rule: func(g []ir.Record, _ ir.Handle) (ir.Record, error) { return mergeCurves(g, hNew2) }}
	_, err = rw.Merge(rule.NewStep(vOld, vNew).Type(otherHandle), otherHandle, group, hNew1)
	assert.True(t, ir.IsInvalidStep(err))

	ok := rule.MergeTypes{From: []string{curveA}, Into: curveMerged, Key: curveKey, Rule: mergeCurves}
	_, err = rw.Merge(rule.NewStep(vOld, vNew).Type(ok), ok, nil, hNew1)
	assert.True(t, ir.IsInvalidStep(err))

	bad := []ir.Record{{Type: curveA, Handle: hInlet, Fields: []ir.Field{ir.F("Name", ir.Text("x"))}}}
	_, err = rw.Merge(rule.NewStep(vOld, vNew).Type(ok), ok, bad, hNew1)
	assert.True(t, ir.IsMalformedRecord(err))
}

func TestLayout_UsesDefaults(t *testing.T) {
	defs := []schema.FieldDef{
		{Name: "Name", Type: ir.TypeString},
		{Name: "Fraction", Type: ir.TypeReal, Default: ir.Real(0.3)},
		{Name: "Node", Type: ir.TypeReference},
	}
	r := Layout("OS:X", hNew1, defs, map[string]ir.Value{"Name": ir.Text("x")})
	assert.Equal(t, []ir.Field{
		ir.F("Name", ir.Text("x")),
		ir.F("Fraction", ir.Real(0.3)),
		ir.F("Node", ir.Empty{}),
	}, r.Fields)
}

func TestApply_RejectsSplitAndMergeTypes(t *testing.T) {
	d := splitDict(t)
	edit := rule.SplitType{From: baseboardType, Into: []string{baseboardType}, Rule: splitBaseboard(d)}
	_, err := New(d).Apply(rule.NewStep(vOld, vNew).Type(edit), baseboard())
	assert.True(t, ir.IsInvalidStep(err))
}
