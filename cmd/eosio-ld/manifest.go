package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/eosio-wasm/wasm-ld/symtab"
	"github.com/eosio-wasm/wasm-ld/wasm"
)

// This linker core never parses real input object files (spec §1 scopes
// that out), so the CLI's substitute for a linker front-end is a small
// JSON object-file manifest: one document per input, already expressing
// the symtab.Object shape that the in-scope components operate on. It is
// the same data builders used by the package test files, just read from a
// file instead of constructed inline with Go literals.
type manifestObject struct {
	Name string `json:"name"`

	Segments []manifestSegment `json:"segments"`

	Functions []manifestSymbol `json:"functions"`
	Globals   []manifestSymbol `json:"globals"`
	Events    []manifestSymbol `json:"events"`

	Types []manifestFuncType `json:"types"`

	CustomSections []manifestCustomSection `json:"custom_sections"`

	UsedFeatures       []string `json:"used_features"`
	RequiredFeatures   []string `json:"required_features"`
	DisallowedFeatures []string `json:"disallowed_features"`

	ABI string `json:"abi"`

	Actions []string `json:"actions"`
	Notify  []string `json:"notify"`
	Calls   []string `json:"calls"`

	InitFunctions []manifestInitFunc `json:"init_functions"`
}

type manifestSegment struct {
	Name        string               `json:"name"`
	DataHex     string               `json:"data_hex"`
	Align       uint32               `json:"align"`
	Live        bool                 `json:"live"`
	Passive     bool                 `json:"passive"`
	TLS         bool                 `json:"tls"`
	StartSym    string               `json:"start_sym"`
	StopSym     string               `json:"stop_sym"`
	Relocations []manifestRelocation `json:"relocations"`
}

type manifestRelocation struct {
	Type   uint32 `json:"type"`
	Offset uint32 `json:"offset"`
	Index  uint32 `json:"index"`
	Addend int64  `json:"addend"`
}

type manifestSymbol struct {
	Name             string   `json:"name"`
	Kind             string   `json:"kind"`
	Visibility       string   `json:"visibility"`
	Live             bool     `json:"live"`
	UsedInRegularObj bool     `json:"used_in_regular_obj"`
	Weak             bool     `json:"weak"`
	Mutable          bool     `json:"mutable"`
	Params           []string `json:"params"`
	Results          []string `json:"results"`
	CodeHex          string   `json:"code_hex"`
}

type manifestFuncType struct {
	Params  []string `json:"params"`
	Results []string `json:"results"`
}

type manifestCustomSection struct {
	Name    string `json:"name"`
	DataHex string `json:"data_hex"`
}

type manifestInitFunc struct {
	Symbol   string `json:"symbol"`
	Priority uint32 `json:"priority"`
}

// LoadObjects parses each manifest path into a symtab.Object and registers
// it on a fresh Table, in argument order (object iteration order is the
// discovery order per spec.md §3).
func LoadObjects(paths []string) (*symtab.Table, error) {
	tab := symtab.NewTable()
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read manifest %s: %w", path, err)
		}
		var m manifestObject
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", path, err)
		}
		obj, err := m.toObject()
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}
		tab.AddObject(obj)
	}
	return tab, nil
}

func (m manifestObject) toObject() (*symtab.Object, error) {
	obj := &symtab.Object{
		Name:               m.Name,
		UsedFeatures:       m.UsedFeatures,
		RequiredFeatures:   m.RequiredFeatures,
		DisallowedFeatures: m.DisallowedFeatures,
		ABI:                m.ABI,
		Actions:            m.Actions,
		Notify:             m.Notify,
		Calls:              m.Calls,
	}

	for _, s := range m.Segments {
		data, err := hex.DecodeString(s.DataHex)
		if err != nil {
			return nil, fmt.Errorf("segment %s: data_hex: %w", s.Name, err)
		}
		var relocs []symtab.Relocation
		for _, r := range s.Relocations {
			relocs = append(relocs, symtab.Relocation{Type: r.Type, Offset: r.Offset, Index: r.Index, Addend: r.Addend})
		}
		obj.Segments = append(obj.Segments, symtab.InputSegment{
			Name:        s.Name,
			Data:        data,
			Align:       s.Align,
			Live:        s.Live,
			Passive:     s.Passive,
			TLS:         s.TLS,
			StartSym:    s.StartSym,
			StopSym:     s.StopSym,
			Relocations: relocs,
		})
	}

	var err error
	if obj.Functions, err = toSymbols(obj, m.Functions); err != nil {
		return nil, err
	}
	if obj.Globals, err = toSymbols(obj, m.Globals); err != nil {
		return nil, err
	}
	if obj.Events, err = toSymbols(obj, m.Events); err != nil {
		return nil, err
	}

	for _, t := range m.Types {
		params, err := valTypes(t.Params)
		if err != nil {
			return nil, err
		}
		results, err := valTypes(t.Results)
		if err != nil {
			return nil, err
		}
		obj.Types = append(obj.Types, wasm.FuncType{Params: params, Results: results})
	}

	for _, cs := range m.CustomSections {
		data, err := hex.DecodeString(cs.DataHex)
		if err != nil {
			return nil, fmt.Errorf("custom section %s: data_hex: %w", cs.Name, err)
		}
		obj.CustomSections = append(obj.CustomSections, wasm.CustomSection{Name: cs.Name, Data: data})
	}

	byName := make(map[string]*symtab.Symbol)
	for _, list := range [][]*symtab.Symbol{obj.Functions, obj.Globals, obj.Events} {
		for _, sym := range list {
			byName[sym.Name] = sym
		}
	}
	for _, initf := range m.InitFunctions {
		sym, ok := byName[initf.Symbol]
		if !ok {
			return nil, fmt.Errorf("init function references unknown symbol %q", initf.Symbol)
		}
		obj.InitFunctions = append(obj.InitFunctions, symtab.InitFunc{Symbol: sym, Priority: initf.Priority})
	}

	return obj, nil
}

func toSymbols(obj *symtab.Object, in []manifestSymbol) ([]*symtab.Symbol, error) {
	var out []*symtab.Symbol
	for _, s := range in {
		kind, err := parseKind(s.Kind)
		if err != nil {
			return nil, fmt.Errorf("symbol %s: %w", s.Name, err)
		}
		vis, err := parseVisibility(s.Visibility)
		if err != nil {
			return nil, fmt.Errorf("symbol %s: %w", s.Name, err)
		}
		params, err := valTypes(s.Params)
		if err != nil {
			return nil, fmt.Errorf("symbol %s: %w", s.Name, err)
		}
		results, err := valTypes(s.Results)
		if err != nil {
			return nil, fmt.Errorf("symbol %s: %w", s.Name, err)
		}
		code, err := hex.DecodeString(s.CodeHex)
		if err != nil {
			return nil, fmt.Errorf("symbol %s: code_hex: %w", s.Name, err)
		}
		out = append(out, &symtab.Symbol{
			Object:           obj,
			Name:             s.Name,
			Kind:             kind,
			Visibility:       vis,
			Live:             s.Live,
			UsedInRegularObj: s.UsedInRegularObj,
			Weak:             s.Weak,
			Mutable:          s.Mutable,
			Signature:        wasm.FuncType{Params: params, Results: results},
			Code:             code,
		})
	}
	return out, nil
}

func parseKind(s string) (symtab.Kind, error) {
	switch s {
	case "defined_function":
		return symtab.DefinedFunction, nil
	case "defined_global":
		return symtab.DefinedGlobal, nil
	case "defined_data":
		return symtab.DefinedData, nil
	case "defined_event":
		return symtab.DefinedEvent, nil
	case "section_symbol":
		return symtab.SectionSymbol, nil
	case "undefined_function":
		return symtab.UndefinedFunction, nil
	case "undefined_global":
		return symtab.UndefinedGlobal, nil
	default:
		return 0, fmt.Errorf("unknown symbol kind %q", s)
	}
}

func parseVisibility(s string) (symtab.Visibility, error) {
	switch s {
	case "", "default":
		return symtab.VisDefault, nil
	case "hidden":
		return symtab.VisHidden, nil
	case "local":
		return symtab.VisLocal, nil
	default:
		return 0, fmt.Errorf("unknown visibility %q", s)
	}
}

func valTypes(in []string) ([]wasm.ValType, error) {
	var out []wasm.ValType
	for _, s := range in {
		switch s {
		case "i32":
			out = append(out, wasm.ValI32)
		case "i64":
			out = append(out, wasm.ValI64)
		case "f32":
			out = append(out, wasm.ValF32)
		case "f64":
			out = append(out, wasm.ValF64)
		case "funcref":
			out = append(out, wasm.ValFuncRef)
		case "externref":
			out = append(out, wasm.ValExtern)
		default:
			return nil, fmt.Errorf("unknown value type %q", s)
		}
	}
	return out, nil
}
