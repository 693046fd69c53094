package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/osversion/internal/compiler"
	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/registry"
	"github.com/roach88/osversion/internal/rule"
	"github.com/roach88/osversion/internal/schema"
)

//go:embed data
var embedded embed.FS

// Catalog is a compiled set of dictionaries and steps.
type Catalog struct {
	Dictionary *schema.Layered
	Registry   *registry.Registry
	Funcs      *rule.Funcs

	// Files lists the compiled documents in load order.
	Files []string
}

// Latest returns the newest version the steps reach.
func (c *Catalog) Latest() ir.VersionTag {
	return c.Registry.Latest()
}

type document struct {
	name  string
	kind  compiler.DocumentKind
	value cue.Value
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return Load()
})

// Default returns the embedded catalog. It is compiled once per process.
func Default() (*Catalog, error) {
	return defaultCatalog()
}

// Load compiles the embedded rules followed by each overlay in order.
func Load(overlays ...fs.FS) (*Catalog, error) {
	data, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	sources := append([]fs.FS{data}, overlays...)

	ctx := cuecontext.New()
	cat := &Catalog{Dictionary: schema.NewLayered()}

	// Dictionaries from every source first: step defaults are typed by the
	// final layouts.
	var stepDocs []document
	for i, src := range sources {
		docs, err := readDocuments(ctx, src, i)
		if err != nil {
			return nil, err
		}
		layer := schema.NewLayered()
		for _, doc := range docs {
			cat.Files = append(cat.Files, doc.name)
			if doc.kind == compiler.KindStep {
				stepDocs = append(stepDocs, doc)
				continue
			}
			if err := defineLayer(layer, doc); err != nil {
				return nil, err
			}
		}
		cat.Dictionary.Overlay(layer)
	}

	cat.Funcs = Funcs(cat.Dictionary)

	byFrom := make(map[ir.VersionTag]*rule.Step)
	for _, doc := range stepDocs {
		step, err := compiler.CompileStep(doc.value, cat.Dictionary, cat.Funcs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", doc.name, err)
		}
		if verrs := compiler.ValidateStep(step, cat.Dictionary); len(verrs) > 0 {
			return nil, fmt.Errorf("%s: %w", doc.name, joinValidation(verrs))
		}
		byFrom[step.From] = step
	}

	steps := make([]*rule.Step, 0, len(byFrom))
	for _, s := range byFrom {
		steps = append(steps, s)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].From.Less(steps[j].From) })

	cat.Registry, err = registry.New(steps...)
	if err != nil {
		return nil, err
	}
	return cat, nil
}

func defineLayer(layer *schema.Layered, doc document) error {
	dl, err := compiler.CompileDictionary(doc.value)
	if err != nil {
		return fmt.Errorf("%s: %w", doc.name, err)
	}
	if verrs := compiler.ValidateDictionary(dl); len(verrs) > 0 {
		return fmt.Errorf("%s: %w", doc.name, joinValidation(verrs))
	}
	if err := dl.DefineInto(layer); err != nil {
		return fmt.Errorf("%s: %w", doc.name, err)
	}
	return nil
}

// readDocuments parses every .cue file of src in lexical path order.
func readDocuments(ctx *cue.Context, src fs.FS, index int) ([]document, error) {
	var docs []document
	err := fs.WalkDir(src, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".cue" {
			return nil
		}
		data, err := fs.ReadFile(src, p)
		if err != nil {
			return err
		}
		name := p
		if index > 0 {
			name = fmt.Sprintf("overlay%d/%s", index, p)
		}
		v, err := compiler.Parse(ctx, name, data)
		if err != nil {
			return err
		}
		kind, err := compiler.Classify(v)
		if err != nil {
			return err
		}
		docs = append(docs, document{name: name, kind: kind, value: v})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func joinValidation(verrs []compiler.ValidationError) error {
	errs := make([]error, len(verrs))
	for i, e := range verrs {
		errs[i] = e
	}
	return errors.Join(errs...)
}
