package compiler

import (
	"fmt"
	"strconv"

	"cuelang.org/go/cue"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/schema"
)

// DictionaryLayer is one version's worth of record type layouts.
type DictionaryLayer struct {
	Version ir.VersionTag
	Types   []schema.TypeDef
}

// CompileDictionary parses a CUE dictionary layer:
//
//	version: "3.10.1"
//	types: [{
//		name: "OS:Controller:MechanicalVentilation"
//		fields: [
//			{name: "Name", type: "string"},
//			{name: "Demand Controlled Ventilation", type: "boolean", default: "No"},
//			{name: "Outdoor Air Method", type: "choice", choices: ["ZoneSum", "VentilationRateProcedure"]},
//		]
//	}, {
//		name: "OS:Old:Type", removed: true
//	}]
func CompileDictionary(v cue.Value) (*DictionaryLayer, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	version, err := parseVersionField(v, "version")
	if err != nil {
		return nil, err
	}
	layer := &DictionaryLayer{Version: version}

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return nil, &CompileError{
			Field:   "types",
			Message: "types is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := typesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		td, err := parseTypeDef(iter.Value(), fmt.Sprintf("types[%d]", i))
		if err != nil {
			return nil, err
		}
		layer.Types = append(layer.Types, td)
	}
	return layer, nil
}

// DefineInto adds every type of the layer to d.
func (l *DictionaryLayer) DefineInto(d *schema.Layered) error {
	for _, td := range l.Types {
		if err := d.Define(l.Version, td); err != nil {
			return err
		}
	}
	return nil
}

func parseTypeDef(v cue.Value, path string) (schema.TypeDef, error) {
	var td schema.TypeDef

	name, err := requiredString(v, "name", path)
	if err != nil {
		return td, err
	}
	td.Name = name

	if removedVal := v.LookupPath(cue.ParsePath("removed")); removedVal.Exists() {
		removed, err := removedVal.Bool()
		if err != nil {
			return td, formatCUEError(err)
		}
		td.Removed = removed
	}
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if td.Removed {
		if fieldsVal.Exists() {
			return td, &CompileError{
				Field:   path + ".fields",
				Message: fmt.Sprintf("removed type %s cannot declare fields", name),
				Pos:     fieldsVal.Pos(),
			}
		}
		return td, nil
	}
	if !fieldsVal.Exists() {
		return td, &CompileError{
			Field:   path + ".fields",
			Message: fmt.Sprintf("type %s needs fields or removed: true", name),
			Pos:     v.Pos(),
		}
	}

	iter, err := fieldsVal.List()
	if err != nil {
		return td, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		fd, err := parseFieldDef(iter.Value(), fmt.Sprintf("%s.fields[%d]", path, i))
		if err != nil {
			return td, err
		}
		td.Fields = append(td.Fields, fd)
	}
	return td, nil
}

func parseFieldDef(v cue.Value, path string) (schema.FieldDef, error) {
	var fd schema.FieldDef

	name, err := requiredString(v, "name", path)
	if err != nil {
		return fd, err
	}
	fd.Name = name

	typeName, err := requiredString(v, "type", path)
	if err != nil {
		return fd, err
	}
	fd.Type = ir.FieldType(typeName)
	if !ir.ValidFieldTypes[fd.Type] {
		return fd, &CompileError{
			Field:   path + ".type",
			Message: fmt.Sprintf("invalid field type %q", typeName),
			Pos:     v.LookupPath(cue.ParsePath("type")).Pos(),
		}
	}

	if choicesVal := v.LookupPath(cue.ParsePath("choices")); choicesVal.Exists() {
		fd.Choices, err = stringList(choicesVal)
		if err != nil {
			return fd, err
		}
	}

	if reqVal := v.LookupPath(cue.ParsePath("required")); reqVal.Exists() {
		fd.Required, err = reqVal.Bool()
		if err != nil {
			return fd, formatCUEError(err)
		}
	}

	if defVal := v.LookupPath(cue.ParsePath("default")); defVal.Exists() {
		fd.Default, err = typedValue(defVal, fd.Type, path+".default")
		if err != nil {
			return fd, err
		}
	}
	return fd, nil
}

// typedValue reads a scalar CUE value as the declared field type.
func typedValue(v cue.Value, t ir.FieldType, path string) (ir.Value, error) {
	text, err := scalarText(v, path)
	if err != nil {
		return nil, err
	}
	val, err := ir.ParseValue(t, text)
	if err != nil {
		return nil, &CompileError{
			Field:   path,
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return val, nil
}

// untypedValue reads a scalar CUE value when no field type is known.
func untypedValue(v cue.Value, path string) (ir.Value, error) {
	switch v.IncompleteKind() {
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Integer(n), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Real(f), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	}
	text, err := scalarText(v, path)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return ir.Empty{}, nil
	}
	if val, err := ir.ParseValue(ir.TypeReal, text); err == nil {
		if kw, ok := val.(ir.Keyword); ok {
			return kw, nil
		}
	}
	return ir.Text(text), nil
}

// scalarText renders a string, number or bool the way it would appear in a
// model file.
func scalarText(v cue.Value, path string) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		return s, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return "", formatCUEError(err)
		}
		return strconv.FormatInt(n, 10), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return "", formatCUEError(err)
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return "", formatCUEError(err)
		}
		return ir.Bool(b).Text(), nil
	default:
		return "", &CompileError{
			Field:   path,
			Message: fmt.Sprintf("expected a string, number or bool, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func parseVersionField(v cue.Value, field string) (ir.VersionTag, error) {
	s, err := requiredString(v, field, "")
	if err != nil {
		return ir.VersionTag{}, err
	}
	tag, err := ir.ParseVersion(s)
	if err != nil {
		return ir.VersionTag{}, &CompileError{
			Field:   field,
			Message: err.Error(),
			Pos:     v.LookupPath(cue.ParsePath(field)).Pos(),
		}
	}
	return tag, nil
}

func requiredString(v cue.Value, field, path string) (string, error) {
	full := field
	if path != "" {
		full = path + "." + field
	}
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   full,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if s == "" {
		return "", &CompileError{
			Field:   full,
			Message: field + " must be non-empty",
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalInt(v cue.Value, field string) (int, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, false, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, false, formatCUEError(err)
	}
	return int(n), true, nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}
