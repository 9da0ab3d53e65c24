// Package ld implements the Writer Driver & ABI Emitter (C10): the
// top-level pipeline that orchestrates every other component, emits the
// binary header, invokes ABI merge, and commits the output file, per
// §4.10.
package ld

import "go.uber.org/zap"

// Config carries every option named in §6's "Configuration" external
// interface, plus the Logger/Verify fields the expanded spec adds (§6,
// §11).
type Config struct {
	OutputFile string

	Relocatable bool
	IsPic       bool
	Shared      bool
	SharedMemory bool

	StackFirst        bool
	StripDebug        bool
	StripAll          bool
	PassiveSegments   bool
	MergeDataSegments bool
	EmitRelocs        bool
	ImportMemory      bool
	ExportTable       bool
	ExportAll         bool
	CheckFeatures     bool
	Features          []string

	ZStackSize    uint64
	GlobalBase    uint64
	InitialMemory uint64
	MaxMemory     uint64

	StackCanary bool

	// OtherModel, when set, skips action/notification dispatcher
	// synthesis entirely even if `apply` is undefined, per §12's
	// other_model passthrough supplement.
	OtherModel bool

	// Logger is the ambient-stack addition (§10); nil means every
	// package falls back to its own zap.NewNop() default.
	Logger *zap.Logger

	// Verify gates the optional wazero validation pass (§11).
	Verify bool

	// Progress, when non-nil, is called with each component's name
	// (C1..C10, in pipeline order) as Link reaches it -- the hook
	// cmd/eosio-ld's optional bubbletea checklist renders against (§11).
	Progress func(phase string)
}

func (c Config) notify(phase string) {
	if c.Progress != nil {
		c.Progress(phase)
	}
}
