package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// VersionRecordType is the distinguished record type that stores the file's
// schema version as its single field.
const VersionRecordType = "OS:Version"

// VersionFieldName is the name of the version record's only field.
const VersionFieldName = "Version Identifier"

// VersionTag identifies a schema release. Tags are totally ordered by
// lexicographic (major, minor, patch) comparison.
type VersionTag struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// V is shorthand for constructing a VersionTag.
func V(major, minor, patch int) VersionTag {
	return VersionTag{Major: major, Minor: minor, Patch: patch}
}

// ParseVersion parses "major.minor.patch". A missing patch component is
// treated as zero ("3.10" == "3.10.0"), matching how older files were saved.
func ParseVersion(s string) (VersionTag, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return VersionTag{}, fmt.Errorf("invalid version %q: want major.minor[.patch]", s)
	}

	nums := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return VersionTag{}, fmt.Errorf("invalid version %q: component %q is not a non-negative integer", s, p)
		}
		nums[i] = n
	}

	return VersionTag{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParseVersion is like ParseVersion but panics on error.
// Use only in tests or for compile-time constants.
func MustParseVersion(s string) VersionTag {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the dotted form, e.g. "3.10.1".
func (v VersionTag) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsZero reports whether v is the zero tag.
func (v VersionTag) IsZero() bool {
	return v == VersionTag{}
}

// Compare returns -1, 0 or +1.
func (v VersionTag) Compare(o VersionTag) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

// Less reports whether v sorts before o.
func (v VersionTag) Less(o VersionTag) bool {
	return v.Compare(o) < 0
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// MarshalText implements encoding.TextMarshaler.
func (v VersionTag) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *VersionTag) UnmarshalText(b []byte) error {
	parsed, err := ParseVersion(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
