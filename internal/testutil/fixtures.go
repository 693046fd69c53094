// Package testutil provides deterministic fixtures shared by package tests.
package testutil

import (
	"fmt"

	"github.com/roach88/osversion/internal/ir"
)

// H returns the n-th fixture handle, {00000000-0000-4000-8000-00000000000n}.
// H(0) is reserved for the version record built by Workspace.
func H(n int) ir.Handle {
	return ir.Handle(fmt.Sprintf("{00000000-0000-4000-8000-%012d}", n))
}

// Rec builds a record from alternating field names and values.
//
//	Rec("OS:ThermalZone", H(1), "Name", ir.Text("Zone 1"), "Multiplier", ir.Integer(1))
//
// Panics on an odd pair list or a non-string name so fixture typos fail fast.
func Rec(typeName string, h ir.Handle, pairs ...any) ir.Record {
	if len(pairs)%2 != 0 {
		panic("testutil.Rec: odd number of name/value arguments")
	}
	r := ir.Record{Type: typeName, Handle: h, Fields: make([]ir.Field, 0, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("testutil.Rec: argument %d must be a field name, got %T", i, pairs[i]))
		}
		v, ok := pairs[i+1].(ir.Value)
		if !ok {
			panic(fmt.Sprintf("testutil.Rec: value for %q must be an ir.Value, got %T", name, pairs[i+1]))
		}
		r.Fields = append(r.Fields, ir.F(name, v))
	}
	return r
}

// VersionRecord builds the version record for v with handle H(0).
func VersionRecord(v ir.VersionTag) ir.Record {
	return ir.Record{Type: ir.VersionRecordType, Handle: H(0), Fields: []ir.Field{
		ir.F(ir.VersionFieldName, ir.Text(v.String())),
	}}
}

// Workspace builds a workspace at v whose first record is the version record.
func Workspace(v ir.VersionTag, records ...ir.Record) *ir.Workspace {
	ws := &ir.Workspace{Version: v, Records: make([]ir.Record, 0, len(records)+1)}
	ws.Records = append(ws.Records, VersionRecord(v))
	ws.Records = append(ws.Records, records...)
	return ws
}

// Without returns the workspace's records minus the version record.
func Without(ws *ir.Workspace) []ir.Record {
	var out []ir.Record
	for _, r := range ws.Records {
		if r.Type != ir.VersionRecordType {
			out = append(out, r)
		}
	}
	return out
}
