package rule

import (
	"fmt"
	"sort"
)

// Funcs is a named table of rule functions referenced from declarative
// step files. The zero value is ready to use.
type Funcs struct {
	Compute map[string]ComputeFunc
	Coerce  map[string]CoerceFunc
	Split   map[string]SplitFunc
	Merge   map[string]MergeFunc
	Key     map[string]KeyFunc
}

// RegisterCompute adds a computed-default function.
func (f *Funcs) RegisterCompute(name string, fn ComputeFunc) {
	if f.Compute == nil {
		f.Compute = make(map[string]ComputeFunc)
	}
	f.Compute[name] = fn
}

// RegisterCoerce adds a coercion function.
func (f *Funcs) RegisterCoerce(name string, fn CoerceFunc) {
	if f.Coerce == nil {
		f.Coerce = make(map[string]CoerceFunc)
	}
	f.Coerce[name] = fn
}

// RegisterSplit adds a split rule.
func (f *Funcs) RegisterSplit(name string, fn SplitFunc) {
	if f.Split == nil {
		f.Split = make(map[string]SplitFunc)
	}
	f.Split[name] = fn
}

// RegisterMerge adds a merge rule.
func (f *Funcs) RegisterMerge(name string, fn MergeFunc) {
	if f.Merge == nil {
		f.Merge = make(map[string]MergeFunc)
	}
	f.Merge[name] = fn
}

// RegisterKey adds a correlation key function.
func (f *Funcs) RegisterKey(name string, fn KeyFunc) {
	if f.Key == nil {
		f.Key = make(map[string]KeyFunc)
	}
	f.Key[name] = fn
}

// LookupCompute returns the named computed-default function.
func (f *Funcs) LookupCompute(name string) (ComputeFunc, error) {
	if fn, ok := f.Compute[name]; ok {
		return fn, nil
	}
	return nil, unknownFunc("compute", name, keys(f.Compute))
}

// LookupCoerce returns the named coercion function.
func (f *Funcs) LookupCoerce(name string) (CoerceFunc, error) {
	if fn, ok := f.Coerce[name]; ok {
		return fn, nil
	}
	return nil, unknownFunc("coerce", name, keys(f.Coerce))
}

// LookupSplit returns the named split rule.
func (f *Funcs) LookupSplit(name string) (SplitFunc, error) {
	if fn, ok := f.Split[name]; ok {
		return fn, nil
	}
	return nil, unknownFunc("split", name, keys(f.Split))
}

// LookupMerge returns the named merge rule.
func (f *Funcs) LookupMerge(name string) (MergeFunc, error) {
	if fn, ok := f.Merge[name]; ok {
		return fn, nil
	}
	return nil, unknownFunc("merge", name, keys(f.Merge))
}

// LookupKey returns the named correlation key function.
func (f *Funcs) LookupKey(name string) (KeyFunc, error) {
	if fn, ok := f.Key[name]; ok {
		return fn, nil
	}
	return nil, unknownFunc("key", name, keys(f.Key))
}

func unknownFunc(kind, name string, known []string) error {
	return fmt.Errorf("unknown %s function %q (known: %v)", kind, name, known)
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
