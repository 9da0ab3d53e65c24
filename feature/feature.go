// Package feature implements the Feature Reconciler (C4): it collects
// used/required/disallowed target-feature sets across objects and
// validates the constraints named in §4.4.
package feature

import (
	"fmt"

	"github.com/eosio-wasm/wasm-ld/errors"
	"github.com/eosio-wasm/wasm-ld/symtab"
)

// Config carries the flags the reconciler needs from driver configuration.
type Config struct {
	SharedMemory    bool
	CheckFeatures   bool
	Features        []string // user-specified feature set; nil/empty = infer
	PassiveSegments bool
	AnyTLSSegment   bool
}

// Set maps a feature name to the first object file name that mentioned it,
// per §4.4 ("each value = first-observed object file name").
type Set map[string]string

func (s Set) observe(name, obj string) {
	if _, ok := s[name]; !ok {
		s[name] = obj
	}
}

// Has reports whether name is present in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the set's feature names, in no particular order;
// callers needing determinism (the target_features section) sort them.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	return out
}

// Result holds the three reconciled feature sets.
type Result struct {
	Used        Set
	Required    Set
	Disallowed  Set
	UserSpecified bool
}

// Reconcile collects the used/required/disallowed sets across objs and
// validates every rule in §4.4, returning the first violation found.
func Reconcile(cfg Config, objs []*symtab.Object) (*Result, error) {
	res := &Result{Used: Set{}, Required: Set{}, Disallowed: Set{}}

	for _, obj := range objs {
		for _, f := range obj.UsedFeatures {
			res.Used.observe(f, obj.Name)
		}
		for _, f := range obj.RequiredFeatures {
			res.Required.observe(f, obj.Name)
		}
		for _, f := range obj.DisallowedFeatures {
			res.Disallowed.observe(f, obj.Name)
		}
	}

	if len(cfg.Features) > 0 {
		res.UserSpecified = true
		res.Used = Set{}
		for _, f := range cfg.Features {
			res.Used.observe(f, "<config>")
		}
	}

	for _, obj := range objs {
		for _, f := range obj.UsedFeatures {
			if owner, ok := res.Disallowed[f]; ok {
				return res, errors.FeatureConflict(obj.Name, f, fmt.Sprintf("globally disallowed by %s", owner))
			}
		}
	}

	if res.Used.Has("atomics") && !cfg.SharedMemory {
		return res, errors.FeatureConflict(res.Used["atomics"], "atomics", "used but sharedMemory is not enabled")
	}
	if res.Disallowed.Has("atomics") && cfg.SharedMemory {
		return res, errors.FeatureConflict(res.Disallowed["atomics"], "atomics", "disallowed but sharedMemory is enabled")
	}
	if cfg.AnyTLSSegment && !res.Used.Has("bulk-memory") {
		return res, errors.FeatureConflict("", "bulk-memory", "required because a TLS segment is present but not used")
	}
	if cfg.PassiveSegments && !res.Used.Has("bulk-memory") {
		return res, errors.FeatureConflict("", "bulk-memory", "required because passive segments were requested but not used")
	}

	if res.UserSpecified {
		declared := make(map[string]bool, len(cfg.Features))
		for _, f := range cfg.Features {
			declared[f] = true
		}
		for _, obj := range objs {
			for _, f := range obj.UsedFeatures {
				if !declared[f] {
					return res, errors.FeatureConflict(obj.Name, f, "used but not in the declared feature set")
				}
			}
		}
	}

	for _, obj := range objs {
		for required := range res.Required {
			if !contains(obj.UsedFeatures, required) {
				return res, errors.FeatureConflict(obj.Name, required, "globally required feature omitted by this object")
			}
		}
	}

	return res, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
