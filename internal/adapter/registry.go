package adapter

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ginjaninja78/statement-normalizer/internal/config"
)

// Factory builds an adapter from an institution config.
type Factory func(cfg *config.Institution, log *zap.Logger) (Adapter, error)

type variant struct {
	factory  Factory
	defaults func() *config.Institution
}

// variants is the fixed set of adapter implementations. Institutions select
// one with the "adapter" config key.
var variants = map[string]variant{
	"generic":        {factory: NewGeneric},
	"ibi":            {factory: NewIBI, defaults: IBIDefaults},
	"ibi-securities": {factory: NewIBISecurities, defaults: IBISecuritiesDefaults},
}

// Variants returns the adapter names, sorted.
func Variants() []string {
	out := make([]string, 0, len(variants))
	for name := range variants {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the factory for an adapter name.
func Lookup(name string) (Factory, bool) {
	v, ok := variants[strings.ToLower(strings.TrimSpace(name))]
	return v.factory, ok
}

// New builds the adapter selected by cfg.Adapter, "generic" when unset.
func New(cfg *config.Institution, log *zap.Logger) (Adapter, error) {
	if cfg == nil {
		return nil, &StructuralError{Reason: "no institution configuration", Err: config.ErrInvalidConfig}
	}
	name := cfg.Adapter
	if name == "" {
		name = "generic"
	}
	f, ok := Lookup(name)
	if !ok {
		return nil, &StructuralError{
			Bank:   cfg.Name,
			Reason: fmt.Sprintf("unknown adapter %q (known: %s)", name, strings.Join(Variants(), ", ")),
			Err:    config.ErrInvalidConfig,
		}
	}
	return f(cfg, log)
}

// Builtin returns the default configuration of every adapter that ships
// one, sorted by name.
func Builtin() []*config.Institution {
	var out []*config.Institution
	for _, name := range Variants() {
		if d := variants[name].defaults; d != nil {
			out = append(out, d())
		}
	}
	return out
}

// Resolve merges builtin defaults under configured institutions. A
// configured institution that names a builtin variant is overlaid on that
// variant's defaults; builtins not overridden by name are appended.
func Resolve(configured []*config.Institution) []*config.Institution {
	seen := make(map[string]bool)
	var out []*config.Institution
	for _, c := range configured {
		merged := c.Clone()
		if v, ok := variants[strings.ToLower(c.Adapter)]; ok && v.defaults != nil {
			merged = c.Overlay(v.defaults())
		}
		seen[merged.Key()] = true
		out = append(out, merged)
	}
	for _, b := range Builtin() {
		if !seen[b.Key()] {
			out = append(out, b)
		}
	}
	return out
}
