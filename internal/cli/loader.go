package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/osversion/internal/catalog"
	"github.com/roach88/osversion/internal/compiler"
)

// LoadError represents an error that occurred while loading rules.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadCatalog returns the built-in catalog, or the built-in catalog with
// the CUE files under rulesDir layered over it.
func LoadCatalog(rulesDir string) (*catalog.Catalog, error) {
	if rulesDir == "" {
		cat, err := catalog.Default()
		if err != nil {
			return nil, convertCatalogError(err)
		}
		return cat, nil
	}

	// Verify directory exists
	info, err := os.Stat(rulesDir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules directory not found: %s", rulesDir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing rules directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", rulesDir)}
	}

	cueFiles, err := FindCUEFiles(rulesDir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", rulesDir)}
	}

	cat, err := catalog.Load(os.DirFS(rulesDir))
	if err != nil {
		return nil, convertCatalogError(err)
	}
	return cat, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCatalogError converts a compiler error to a LoadError with position
// info. Validation errors keep their own code; the first one wins.
func convertCatalogError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: err.Error(),
			Pos:     compileErr.Pos,
		}
	}
	var validationErr compiler.ValidationError
	if errors.As(err, &validationErr) {
		return &LoadError{
			Code:    validationErr.Code,
			Message: err.Error(),
		}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No CUE files found
	ErrCodeLoadFailed   = "E004" // Rules failed to load
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBuildFailed  = "E006" // CUE build failed
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeDecodeFailed = "E008" // Model file unreadable
	ErrCodeStoreFailed  = "E009" // Translation log error

	// Rule compile errors
	ErrCodeVersion    = "E010" // Bad version, from or to
	ErrCodeTypeDef    = "E011" // Bad type or field declaration
	ErrCodeFieldEdit  = "E012" // Bad field edit
	ErrCodeRuleRef    = "E013" // Unknown compute, coerce or split rule
	ErrCodeStepHeader = "E014" // Bad step document
)

// MapFieldToErrorCode maps a compiler error field path to an error code.
// Only the last path segment counts, with any index stripped:
// "records[0].edits[2].op" maps as "op".
func MapFieldToErrorCode(field string) string {
	seg := field
	if i := strings.LastIndexByte(seg, '.'); i >= 0 {
		seg = seg[i+1:]
	}
	if i := strings.IndexByte(seg, '['); i >= 0 {
		seg = seg[:i]
	}

	switch seg {
	case "cue":
		return ErrCodeBuildFailed
	case "version", "from", "to":
		return ErrCodeVersion
	case "types", "name", "fields", "type", "default", "choices", "removed":
		return ErrCodeTypeDef
	case "edits", "op", "index", "map", "records":
		return ErrCodeFieldEdit
	case "rule", "compute", "coerce", "key":
		return ErrCodeRuleRef
	case "step", "document":
		return ErrCodeStepHeader
	default:
		return ErrCodeGeneric
	}
}
