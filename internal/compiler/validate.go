package compiler

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/rewrite"
	"github.com/roach88/osversion/internal/rule"
	"github.com/roach88/osversion/internal/schema"
)

// Validation error codes (E100-E199)
const (
	// Dictionary errors (E101-E109)
	ErrDuplicateType     = "E101" // type declared twice in one layer
	ErrDuplicateField    = "E102" // field declared twice in one type
	ErrInvalidFieldType  = "E103" // unknown field type
	ErrDefaultType       = "E104" // default does not fit the field type
	ErrChoiceDefault     = "E105" // default is not one of the choices
	ErrChoicesNotAllowed = "E106" // choices on a non-choice field
	ErrChoiceWithoutList = "E107" // choice field without choices

	// Step errors (E110-E119)
	ErrStepUnknownSource = "E110" // edited type unknown at the source version
	ErrStepUnknownTarget = "E111" // produced type unknown at the target version
	ErrStepDryRun        = "E112" // applying the step to a default record fails
)

// ValidationError represents a dictionary or step validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateDictionary checks a compiled layer.
// Returns all errors found (does not fail-fast).
func ValidateDictionary(l *DictionaryLayer) []ValidationError {
	var errs []ValidationError
	typeNames := make(map[string]bool)

	for i, td := range l.Types {
		path := fmt.Sprintf("types[%d]", i)

		// E101: duplicate type
		if typeNames[td.Name] {
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("duplicate type %s at %s", td.Name, l.Version),
				Code:    ErrDuplicateType,
			})
		}
		typeNames[td.Name] = true

		fieldNames := make(map[string]bool)
		for j, fd := range td.Fields {
			fpath := fmt.Sprintf("%s.fields[%d]", path, j)

			// E102: duplicate field
			if fieldNames[fd.Name] {
				errs = append(errs, ValidationError{
					Field:   fpath + ".name",
					Message: fmt.Sprintf("%s declares field %q twice", td.Name, fd.Name),
					Code:    ErrDuplicateField,
				})
			}
			fieldNames[fd.Name] = true

			errs = append(errs, validateFieldDef(fd, fpath)...)
		}
	}
	return errs
}

func validateFieldDef(fd schema.FieldDef, path string) []ValidationError {
	var errs []ValidationError

	// E103: field type
	if !ir.ValidFieldTypes[fd.Type] {
		errs = append(errs, ValidationError{
			Field:   path + ".type",
			Message: fmt.Sprintf("invalid type %q for field %q", fd.Type, fd.Name),
			Code:    ErrInvalidFieldType,
		})
		return errs
	}

	// E104: default kind
	if fd.Default != nil && !ir.Compatible(fd.Type, fd.Default) {
		errs = append(errs, ValidationError{
			Field:   path + ".default",
			Message: fmt.Sprintf("default %q is not a %s", fd.Default.Text(), fd.Type),
			Code:    ErrDefaultType,
		})
	}

	if fd.Type == ir.TypeChoice {
		// E107: choice needs choices
		if len(fd.Choices) == 0 {
			errs = append(errs, ValidationError{
				Field:   path + ".choices",
				Message: fmt.Sprintf("choice field %q lists no choices", fd.Name),
				Code:    ErrChoiceWithoutList,
			})
		}
		// E105: default among choices
		if tok, ok := fd.Default.(ir.Token); ok && len(fd.Choices) > 0 && !fd.HasChoice(string(tok)) {
			errs = append(errs, ValidationError{
				Field:   path + ".default",
				Message: fmt.Sprintf("default %q is not one of %v", tok, fd.Choices),
				Code:    ErrChoiceDefault,
			})
		}
	} else if len(fd.Choices) > 0 {
		// E106: choices on a non-choice field
		errs = append(errs, ValidationError{
			Field:   path + ".choices",
			Message: fmt.Sprintf("%s field %q cannot list choices", fd.Type, fd.Name),
			Code:    ErrChoicesNotAllowed,
		})
	}
	return errs
}

// dryRunHandle is the handle of the synthetic records ValidateStep rewrites.
const dryRunHandle = ir.Handle("{00000000-0000-4000-8000-000000000000}")

// ValidateStep checks step against dict. Every type the step edits must
// exist at its source version, every type it produces must exist at its
// target version, and rewriting a record built from source defaults must
// yield the target layout.
func ValidateStep(step *rule.Step, dict schema.Dictionary) []ValidationError {
	var errs []ValidationError
	rw := rewrite.New(dict)

	source := func(path, typeName string) bool {
		if _, ok := dict.Fields(step.From, typeName); ok {
			return true
		}
		errs = append(errs, ValidationError{
			Field:   path,
			Message: fmt.Sprintf("%s: type %s does not exist at %s", step.Name(), typeName, step.From),
			Code:    ErrStepUnknownSource,
		})
		return false
	}
	target := func(path, typeName string) {
		if _, ok := dict.Fields(step.To, typeName); !ok {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("%s: type %s does not exist at %s", step.Name(), typeName, step.To),
				Code:    ErrStepUnknownTarget,
			})
		}
	}

	for i, te := range step.Types {
		path := fmt.Sprintf("types[%d]", i)
		switch e := te.(type) {
		case rule.RenameType:
			source(path+".from", e.From)
			target(path+".to", e.To)
		case rule.SplitType:
			source(path+".from", e.From)
			for _, into := range e.Into {
				target(path+".into", into)
			}
		case rule.MergeTypes:
			for _, from := range e.From {
				source(path+".from", from)
			}
			target(path+".into", e.Into)
		}
	}

	typeNames := make([]string, 0, len(step.Records))
	for name := range step.Records {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	for _, name := range typeNames {
		path := "records." + name
		if !source(path, name) {
			continue
		}
		pre, _ := dict.Fields(step.From, name)
		if _, err := rw.Apply(step, rewrite.Layout(name, dryRunHandle, pre, nil)); err != nil {
			msg := err.Error()
			var te *ir.TranslationError
			if errors.As(err, &te) {
				msg = te.Message
			}
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("%s: %s", step.Name(), msg),
				Code:    ErrStepDryRun,
			})
		}
	}
	return errs
}
