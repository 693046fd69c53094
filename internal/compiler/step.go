package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/rule"
	"github.com/roach88/osversion/internal/schema"
)

// CompileStep parses a CUE translation step:
//
//	from: "3.10.1"
//	to:   "3.11.0"
//	records: [{
//		type: "OS:FluidCooler:SingleSpeed"
//		edits: [
//			{op: "insert", index: 7, name: "Design Entering Water Temperature", default: "Autosize"},
//			{op: "insert", index: 10, name: "User Specified Design Capacity", compute: "fluidCoolerUserSpecifiedCapacity"},
//		]
//	}]
//	types: [{op: "rename", from: "OS:A", to: "OS:B"}]
//
// Named functions (compute, coerce, rule, key) resolve through funcs.
// Insert defaults take the type of the field they create in dict at the
// step's target version; without a declaration they are read from the CUE
// kind.
func CompileStep(v cue.Value, dict schema.Dictionary, funcs *rule.Funcs) (*rule.Step, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if funcs == nil {
		funcs = &rule.Funcs{}
	}

	from, err := parseVersionField(v, "from")
	if err != nil {
		return nil, err
	}
	to, err := parseVersionField(v, "to")
	if err != nil {
		return nil, err
	}
	step := rule.NewStep(from, to)

	// Type edits first: insert defaults are typed by the renamed layout.
	if typesVal := v.LookupPath(cue.ParsePath("types")); typesVal.Exists() {
		iter, err := typesVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			te, err := parseTypeEdit(iter.Value(), fmt.Sprintf("types[%d]", i), funcs)
			if err != nil {
				return nil, err
			}
			step.Type(te)
		}
	}

	if recordsVal := v.LookupPath(cue.ParsePath("records")); recordsVal.Exists() {
		iter, err := recordsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			path := fmt.Sprintf("records[%d]", i)
			rv := iter.Value()

			typeName, err := requiredString(rv, "type", path)
			if err != nil {
				return nil, err
			}
			if _, dup := step.Records[typeName]; dup {
				return nil, &CompileError{
					Field:   path + ".type",
					Message: fmt.Sprintf("type %s listed twice", typeName),
					Pos:     rv.Pos(),
				}
			}
			post := typeName
			if renamed, ok := step.RenameFor(typeName); ok {
				post = renamed
			}
			var postDefs []schema.FieldDef
			if dict != nil {
				postDefs, _ = dict.Fields(to, post)
			}

			editsVal := rv.LookupPath(cue.ParsePath("edits"))
			if !editsVal.Exists() {
				return nil, &CompileError{
					Field:   path + ".edits",
					Message: "edits is required",
					Pos:     rv.Pos(),
				}
			}
			eiter, err := editsVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			var edits []rule.FieldEdit
			for j := 0; eiter.Next(); j++ {
				fe, err := parseFieldEdit(eiter.Value(), fmt.Sprintf("%s.edits[%d]", path, j), postDefs, funcs)
				if err != nil {
					return nil, err
				}
				edits = append(edits, fe)
			}
			step.Edit(typeName, edits...)
		}
	}

	if err := step.Validate(); err != nil {
		return nil, &CompileError{
			Field:   "step",
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return step, nil
}

func parseFieldEdit(v cue.Value, path string, post []schema.FieldDef, funcs *rule.Funcs) (rule.FieldEdit, error) {
	op, err := requiredString(v, "op", path)
	if err != nil {
		return nil, err
	}

	index, hasIndex, err := optionalInt(v, "index")
	if err != nil {
		return nil, err
	}
	needIndex := func() error {
		if !hasIndex {
			return &CompileError{
				Field:   path + ".index",
				Message: op + " needs an index",
				Pos:     v.Pos(),
			}
		}
		return nil
	}

	switch op {
	case "insert":
		if err := needIndex(); err != nil {
			return nil, err
		}
		name, err := requiredString(v, "name", path)
		if err != nil {
			return nil, err
		}
		ins := rule.InsertField{Index: index, Name: name, Default: ir.Empty{}}

		defVal := v.LookupPath(cue.ParsePath("default"))
		computeName, err := optionalString(v, "compute")
		if err != nil {
			return nil, err
		}
		if defVal.Exists() && computeName != "" {
			return nil, &CompileError{
				Field:   path,
				Message: "insert takes either a default or a compute function, not both",
				Pos:     v.Pos(),
			}
		}
		if computeName != "" {
			fn, err := funcs.LookupCompute(computeName)
			if err != nil {
				return nil, &CompileError{Field: path + ".compute", Message: err.Error(), Pos: v.Pos()}
			}
			ins.Compute = fn
			ins.ComputeName = computeName
		}
		if defVal.Exists() {
			if i := schema.IndexOf(post, name); i >= 0 {
				ins.Default, err = typedValue(defVal, post[i].Type, path+".default")
			} else {
				ins.Default, err = untypedValue(defVal, path+".default")
			}
			if err != nil {
				return nil, err
			}
		}
		return ins, nil

	case "delete":
		if err := needIndex(); err != nil {
			return nil, err
		}
		name, err := optionalString(v, "name")
		if err != nil {
			return nil, err
		}
		return rule.Delete(index, name), nil

	case "rename":
		from, err := requiredString(v, "from", path)
		if err != nil {
			return nil, err
		}
		to, err := requiredString(v, "to", path)
		if err != nil {
			return nil, err
		}
		return rule.Rename(from, to), nil

	case "retype":
		if err := needIndex(); err != nil {
			return nil, err
		}
		to, err := requiredString(v, "to", path)
		if err != nil {
			return nil, err
		}
		rt := rule.Retype(index, ir.FieldType(to))
		coerceName, err := optionalString(v, "coerce")
		if err != nil {
			return nil, err
		}
		if coerceName != "" {
			fn, err := funcs.LookupCoerce(coerceName)
			if err != nil {
				return nil, &CompileError{Field: path + ".coerce", Message: err.Error(), Pos: v.Pos()}
			}
			rt.Coerce = fn
			rt.CoerceName = coerceName
		}
		return rt, nil

	case "remap":
		if err := needIndex(); err != nil {
			return nil, err
		}
		mapVal := v.LookupPath(cue.ParsePath("map"))
		if !mapVal.Exists() {
			return nil, &CompileError{
				Field:   path + ".map",
				Message: "remap needs a map",
				Pos:     v.Pos(),
			}
		}
		iter, err := mapVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m := make(map[string]string)
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			m[iter.Label()] = s
		}
		return rule.Remap(index, m), nil
	}

	return nil, &CompileError{
		Field:   path + ".op",
		Message: fmt.Sprintf("unknown field edit %q, must be insert, delete, rename, retype or remap", op),
		Pos:     v.LookupPath(cue.ParsePath("op")).Pos(),
	}
}

func parseTypeEdit(v cue.Value, path string, funcs *rule.Funcs) (rule.RecordTypeEdit, error) {
	op, err := requiredString(v, "op", path)
	if err != nil {
		return nil, err
	}

	switch op {
	case "rename":
		from, err := requiredString(v, "from", path)
		if err != nil {
			return nil, err
		}
		to, err := requiredString(v, "to", path)
		if err != nil {
			return nil, err
		}
		return rule.RenameType{From: from, To: to}, nil

	case "split":
		from, err := requiredString(v, "from", path)
		if err != nil {
			return nil, err
		}
		into, err := requiredList(v, "into", path)
		if err != nil {
			return nil, err
		}
		ruleName, err := requiredString(v, "rule", path)
		if err != nil {
			return nil, err
		}
		fn, err := funcs.LookupSplit(ruleName)
		if err != nil {
			return nil, &CompileError{Field: path + ".rule", Message: err.Error(), Pos: v.Pos()}
		}
		return rule.SplitType{From: from, Into: into, Rule: fn, RuleName: ruleName}, nil

	case "merge":
		from, err := requiredList(v, "from", path)
		if err != nil {
			return nil, err
		}
		into, err := requiredString(v, "into", path)
		if err != nil {
			return nil, err
		}
		ruleName, err := requiredString(v, "rule", path)
		if err != nil {
			return nil, err
		}
		keyName, err := requiredString(v, "key", path)
		if err != nil {
			return nil, err
		}
		fn, err := funcs.LookupMerge(ruleName)
		if err != nil {
			return nil, &CompileError{Field: path + ".rule", Message: err.Error(), Pos: v.Pos()}
		}
		key, err := funcs.LookupKey(keyName)
		if err != nil {
			return nil, &CompileError{Field: path + ".key", Message: err.Error(), Pos: v.Pos()}
		}
		return rule.MergeTypes{From: from, Into: into, Key: key, KeyName: keyName, Rule: fn, RuleName: ruleName}, nil
	}

	return nil, &CompileError{
		Field:   path + ".op",
		Message: fmt.Sprintf("unknown type edit %q, must be rename, split or merge", op),
		Pos:     v.LookupPath(cue.ParsePath("op")).Pos(),
	}
}

func requiredList(v cue.Value, field, path string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, &CompileError{
			Field:   path + "." + field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	out, err := stringList(fv)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &CompileError{
			Field:   path + "." + field,
			Message: field + " must list at least one type",
			Pos:     fv.Pos(),
		}
	}
	return out, nil
}
