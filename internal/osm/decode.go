package osm

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/schema"
)

// ParseError reports malformed model text.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("osm: line %d: %s", e.Line, e.Message)
}

// rawRecord is a record's tokens before typing.
type rawRecord struct {
	line   int
	tokens []string
	notes  []string // comment per token, "" when absent
}

// Decode reads a workspace. Field values of types dict knows at the
// recorded version are typed by their declaration, and omitted trailing
// fields are filled with Empty. Records of unknown types keep their values
// as text, except handles, which become references; their field names come
// from the comments. dict may be nil, and is ignored for a model newer than
// every layout it holds.
//
// Values that do not parse as their declared type, and values past the
// last declared field, are kept as text so that validation can report the
// record.
func Decode(r io.Reader, dict schema.Dictionary) (*ir.Workspace, error) {
	raws, err := scan(r)
	if err != nil {
		return nil, err
	}

	ws := &ir.Workspace{}
	for _, raw := range raws {
		if raw.tokens[0] != ir.VersionRecordType {
			continue
		}
		if len(raw.tokens) < 3 {
			return nil, &ParseError{Line: raw.line, Message: "version record has no version identifier"}
		}
		v, err := ir.ParseVersion(raw.tokens[2])
		if err != nil {
			return nil, &ParseError{Line: raw.line, Message: err.Error()}
		}
		ws.Version = v
		break
	}
	if ws.Version.IsZero() {
		return nil, &ParseError{Line: 1, Message: "no " + ir.VersionRecordType + " record"}
	}

	if !schema.Covers(dict, ws.Version) {
		dict = nil
	}

	seen := make(map[ir.Handle]int)
	for _, raw := range raws {
		rec, err := decodeRecord(raw, ws.Version, dict)
		if err != nil {
			return nil, err
		}
		if first, dup := seen[rec.Handle]; dup {
			return nil, &ParseError{Line: raw.line, Message: fmt.Sprintf("handle %s already used on line %d", rec.Handle, first)}
		}
		seen[rec.Handle] = raw.line
		ws.Records = append(ws.Records, rec)
	}
	return ws, nil
}

func decodeRecord(raw rawRecord, v ir.VersionTag, dict schema.Dictionary) (ir.Record, error) {
	typeName := raw.tokens[0]
	if typeName == "" {
		return ir.Record{}, &ParseError{Line: raw.line, Message: "record has no type"}
	}
	if len(raw.tokens) < 2 || !ir.IsHandle(raw.tokens[1]) {
		return ir.Record{}, &ParseError{Line: raw.line, Message: typeName + " record has no handle"}
	}
	rec := ir.Record{Type: typeName, Handle: ir.Handle(raw.tokens[1])}
	values := raw.tokens[2:]
	notes := raw.notes[2:]

	if typeName == ir.VersionRecordType {
		if len(values) != 1 {
			return ir.Record{}, &ParseError{Line: raw.line, Message: "version record must have exactly one field"}
		}
		rec.Fields = []ir.Field{ir.F(ir.VersionFieldName, ir.Text(values[0]))}
		return rec, nil
	}

	var defs []schema.FieldDef
	if dict != nil {
		defs, _ = dict.Fields(v, typeName)
	}
	if defs == nil {
		for i, s := range values {
			rec.Fields = append(rec.Fields, ir.F(notes[i], guess(s)))
		}
		return rec, nil
	}

	rec.Fields = make([]ir.Field, len(defs), max(len(defs), len(values)))
	for i, d := range defs {
		var val ir.Value = ir.Empty{}
		if i < len(values) {
			parsed, err := ir.ParseValue(d.Type, values[i])
			if err != nil {
				parsed = ir.Text(values[i])
			}
			val = parsed
		}
		rec.Fields[i] = ir.F(d.Name, val)
	}
	for i := len(defs); i < len(values); i++ {
		rec.Fields = append(rec.Fields, ir.F(notes[i], guess(values[i])))
	}
	return rec, nil
}

// guess types a value of an undeclared field.
func guess(s string) ir.Value {
	switch {
	case s == "":
		return ir.Empty{}
	case ir.IsHandle(s):
		return ir.Ref(s)
	}
	return ir.Text(s)
}

// scan splits the input into raw records.
func scan(r io.Reader) ([]rawRecord, error) {
	var (
		out     []rawRecord
		cur     *rawRecord
		pending strings.Builder
	)
	flush := func(note string) {
		cur.tokens = append(cur.tokens, strings.TrimSpace(pending.String()))
		cur.notes = append(cur.notes, note)
		pending.Reset()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text, note := sc.Text(), ""
		if i := strings.Index(text, "!"); i >= 0 {
			note = strings.TrimSpace(strings.TrimPrefix(text[i:], "!-"))
			text = text[:i]
		}
		if cur == nil && strings.TrimSpace(text) == "" {
			continue
		}

		for _, c := range text {
			if cur == nil {
				if c == ' ' || c == '\t' {
					continue
				}
				cur = &rawRecord{line: line}
			}
			switch c {
			case ',':
				flush("")
			case ';':
				flush("")
				out = append(out, *cur)
				cur = nil
			default:
				pending.WriteRune(c)
			}
		}
		// A comment names the last field completed on its line.
		if cur != nil && note != "" && len(cur.notes) > 0 {
			cur.notes[len(cur.notes)-1] = note
		} else if cur == nil && note != "" && len(out) > 0 {
			last := &out[len(out)-1]
			if len(last.notes) > 0 && last.notes[len(last.notes)-1] == "" {
				last.notes[len(last.notes)-1] = note
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("osm: %w", err)
	}
	if cur != nil {
		return nil, &ParseError{Line: cur.line, Message: "record is not terminated by ';'"}
	}
	return out, nil
}
