package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldType is the declared type of a field slot in the schema dictionary.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeReal      FieldType = "real"
	TypeInteger   FieldType = "integer"
	TypeBoolean   FieldType = "boolean"
	TypeChoice    FieldType = "choice"
	TypeReference FieldType = "reference"
)

// ValidFieldTypes defines the allowed declared field types.
var ValidFieldTypes = map[FieldType]bool{
	TypeString:    true,
	TypeReal:      true,
	TypeInteger:   true,
	TypeBoolean:   true,
	TypeChoice:    true,
	TypeReference: true,
}

// ValueKind identifies the concrete kind of a Value.
type ValueKind int

const (
	KindEmpty ValueKind = iota
	KindText
	KindReal
	KindInteger
	KindBool
	KindToken
	KindRef
	KindKeyword
)

var kindNames = [...]string{
	KindEmpty:   "empty",
	KindText:    "text",
	KindReal:    "real",
	KindInteger: "integer",
	KindBool:    "bool",
	KindToken:   "token",
	KindRef:     "ref",
	KindKeyword: "keyword",
}

// String returns the lowercase kind name.
func (k ValueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is a sealed interface over the field value kinds.
// Only Empty, Text, Real, Integer, Bool, Token, Ref and Keyword implement it.
type Value interface {
	irValue()

	// Kind returns the concrete kind.
	Kind() ValueKind

	// Text returns the serialized form written to the model file.
	Text() string
}

// Empty is an unset field.
type Empty struct{}

func (Empty) irValue() {}
func (Empty) Kind() ValueKind { return KindEmpty }
func (Empty) Text() string { return "" }

// Text is a free-form string value.
type Text string

func (Text) irValue() {}
func (Text) Kind() ValueKind { return KindText }
func (t Text) Text() string { return string(t) }

// Real is a floating point value.
type Real float64

func (Real) irValue() {}
func (Real) Kind() ValueKind { return KindReal }
func (r Real) Text() string { return strconv.FormatFloat(float64(r), 'g', -1, 64) }

// Integer is an integral value.
type Integer int64

func (Integer) irValue() {}
func (Integer) Kind() ValueKind { return KindInteger }
func (i Integer) Text() string { return strconv.FormatInt(int64(i), 10) }

// Bool is a Yes/No value.
type Bool bool

func (Bool) irValue() {}
func (Bool) Kind() ValueKind { return KindBool }
func (b Bool) Text() string {
	if b {
		return "Yes"
	}
	return "No"
}

// Token is an enumerated choice token.
type Token string

func (Token) irValue() {}
func (Token) Kind() ValueKind { return KindToken }
func (t Token) Text() string { return string(t) }

// Ref is a reference to another record's handle.
type Ref Handle

func (Ref) irValue() {}
func (Ref) Kind() ValueKind { return KindRef }
func (r Ref) Text() string { return string(r) }

// Handle returns the referenced handle.
func (r Ref) Handle() Handle { return Handle(r) }

// Keyword is a sizing keyword allowed in numeric slots.
type Keyword string

const (
	Autosize      Keyword = "Autosize"
	Autocalculate Keyword = "Autocalculate"
)

func (Keyword) irValue() {}
func (Keyword) Kind() ValueKind { return KindKeyword }
func (k Keyword) Text() string { return string(k) }

// ParseValue interprets s according to the declared field type.
// Blank text is always Empty. Returns an error when s cannot be read as t;
// callers that must not lose data fall back to Text.
func ParseValue(t FieldType, s string) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Empty{}, nil
	}

	switch t {
	case TypeString:
		return Text(s), nil
	case TypeReal:
		if kw, ok := parseKeyword(s); ok {
			return kw, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a real number", s)
		}
		return Real(f), nil
	case TypeInteger:
		if kw, ok := parseKeyword(s); ok {
			return kw, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", s)
		}
		return Integer(n), nil
	case TypeBoolean:
		switch strings.ToLower(s) {
		case "yes", "true":
			return Bool(true), nil
		case "no", "false":
			return Bool(false), nil
		}
		return nil, fmt.Errorf("%q is not Yes or No", s)
	case TypeChoice:
		return Token(s), nil
	case TypeReference:
		if !IsHandle(s) {
			return nil, fmt.Errorf("%q is not a handle", s)
		}
		return Ref(s), nil
	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}
}

func parseKeyword(s string) (Keyword, bool) {
	switch strings.ToLower(s) {
	case "autosize":
		return Autosize, true
	case "autocalculate":
		return Autocalculate, true
	}
	return "", false
}

// Compatible reports whether v may be stored in a slot declared as t.
// Empty is compatible with every type.
func Compatible(t FieldType, v Value) bool {
	if v == nil {
		return false
	}
	switch v.Kind() {
	case KindEmpty:
		return true
	case KindText:
		return t == TypeString
	case KindReal:
		return t == TypeReal
	case KindInteger:
		return t == TypeInteger
	case KindKeyword:
		return t == TypeReal || t == TypeInteger
	case KindBool:
		return t == TypeBoolean
	case KindToken:
		return t == TypeChoice
	case KindRef:
		return t == TypeReference
	}
	return false
}

// Coerce converts v to the declared type t by reinterpreting its text.
// Empty stays Empty. A Real with a fractional part cannot become an Integer.
func Coerce(v Value, t FieldType) (Value, error) {
	if v == nil || v.Kind() == KindEmpty {
		return Empty{}, nil
	}
	if Compatible(t, v) {
		return v, nil
	}
	if r, ok := v.(Real); ok && t == TypeInteger {
		if float64(r) != float64(int64(r)) {
			return nil, fmt.Errorf("cannot coerce %s to integer without loss", r.Text())
		}
		return Integer(int64(r)), nil
	}
	out, err := ParseValue(t, v.Text())
	if err != nil {
		return nil, fmt.Errorf("coerce %s to %s: %w", v.Kind(), t, err)
	}
	return out, nil
}

// ValuesEqual reports whether two values have the same kind and text.
func ValuesEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind() == b.Kind() && a.Text() == b.Text()
}
