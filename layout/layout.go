// Package layout implements the Memory Layout Engine (C2): it places the
// stack, data segments, and heap in linear memory and assigns virtual
// addresses to the well-known layout symbols.
package layout

import (
	"github.com/eosio-wasm/wasm-ld/errors"
	"github.com/eosio-wasm/wasm-ld/segment"
)

const (
	PageSize   = 65536
	StackAlign = 16
)

// Config carries the subset of driver configuration the layout engine
// needs, per §4.2.
type Config struct {
	GlobalBase    uint64
	ZStackSize    uint64
	InitialMemory uint64
	MaxMemory     uint64
	StackFirst    bool
	Relocatable   bool
	IsPic         bool
	Shared        bool
	SharedMemory  bool
}

// Symbols is the set of well-known layout symbol values computed by Plan.
// Plan writes through a field only when its pointer is non-nil; the
// caller leaves a field nil to skip that symbol, mirroring the
// "(if live)" guards in §4.2.
type Symbols struct {
	GlobalBase    *uint64 // __global_base
	DSOHandle     *uint64 // __dso_handle
	DataEnd       *uint64 // __data_end
	StackPointer  *uint64 // __stack_pointer (post-stack value)
	TLSSize       *uint64 // __tls_size (init value, not VA)
	HeapBase      *uint64 // __heap_base
}

// Result reports the outcome of the layout pass.
type Result struct {
	MemoryPtr   uint64 // final pointer after layout
	MemSize     uint64 // recorded size when Shared short-circuits
	MemPages    uint32 // computed memory-section page count
	MaxPages    uint32
	HasMax      bool
	MemAlign    uint32 // max alignment observed across segments, for dylink
}

func alignUp(v uint64, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// Plan runs the layout algorithm over outs (in creation order, i.e. the
// order segment.Plan returned them) and writes VAs into sym's non-nil
// fields, per §4.2.
func Plan(cfg Config, outs []*segment.Output, sym Symbols) (*Result, error) {
	var ptr uint64
	res := &Result{}

	if cfg.StackFirst {
		if !cfg.Relocatable && !cfg.IsPic {
			if err := ValidateStackAlignment(cfg.ZStackSize); err != nil {
				return nil, err
			}
			ptr = placeStack(cfg, ptr)
		}
	} else {
		ptr = cfg.GlobalBase
	}

	if sym.GlobalBase != nil {
		*sym.GlobalBase = cfg.GlobalBase
	}

	dataStart := ptr
	if sym.DSOHandle != nil {
		*sym.DSOHandle = dataStart
	}

	for _, out := range outs {
		align := uint64(1) << out.Align
		ptr = alignUp(ptr, align)
		out.StartVA = ptr
		ptr += out.Size
		if out.Align > res.MemAlign {
			res.MemAlign = out.Align
		}
		if out.TLS && sym.TLSSize != nil {
			*sym.TLSSize = out.Size
		}
	}

	if sym.DataEnd != nil {
		*sym.DataEnd = ptr
	}

	if cfg.Shared {
		res.MemSize = ptr
		res.MemoryPtr = ptr
		return res, nil
	}

	if !cfg.StackFirst {
		if !cfg.Relocatable && !cfg.IsPic {
			if err := ValidateStackAlignment(cfg.ZStackSize); err != nil {
				return nil, err
			}
		}
		ptr = placeStack(cfg, ptr)
		if sym.StackPointer != nil {
			*sym.StackPointer = ptr
		}
	} else if sym.StackPointer != nil {
		// stack already placed before data; its post-stack pointer is the
		// data start recorded above.
		*sym.StackPointer = dataStart
	}

	if sym.HeapBase != nil {
		*sym.HeapBase = ptr
	}

	if cfg.InitialMemory != 0 {
		if cfg.InitialMemory%PageSize != 0 {
			return nil, errors.MisalignedSize(errors.PhaseLayout, "initialMemory", cfg.InitialMemory, PageSize)
		}
		if cfg.InitialMemory < ptr {
			return nil, errors.MemoryTooSmall(errors.PhaseLayout, "initialMemory", cfg.InitialMemory, ptr)
		}
	}

	memBytes := cfg.InitialMemory
	if memBytes == 0 {
		memBytes = alignUp(ptr, PageSize)
	}
	res.MemPages = uint32(memBytes / PageSize)

	if cfg.MaxMemory != 0 || cfg.SharedMemory {
		max := cfg.MaxMemory
		if max != 0 {
			if max%PageSize != 0 {
				return nil, errors.MisalignedSize(errors.PhaseLayout, "maxMemory", max, PageSize)
			}
			if max < ptr {
				return nil, errors.MemoryTooSmall(errors.PhaseLayout, "maxMemory", max, ptr)
			}
		} else {
			max = memBytes
		}
		res.HasMax = true
		res.MaxPages = uint32(max / PageSize)
	}

	res.MemoryPtr = ptr
	return res, nil
}

// placeStack advances ptr past the stack region, per the "placing the
// stack" rule in §4.2: a no-op under relocatable/PIC output.
func placeStack(cfg Config, ptr uint64) uint64 {
	if cfg.Relocatable || cfg.IsPic {
		return ptr
	}
	ptr = alignUp(ptr, StackAlign)
	ptr += cfg.ZStackSize
	return ptr
}

// ValidateStackAlignment reports the §4.2 error for a misaligned zStackSize
// up front; placeStack aligns only the pointer and adds zStackSize as
// given, so a misaligned size would otherwise pass through unreported.
func ValidateStackAlignment(zStackSize uint64) error {
	if zStackSize%StackAlign != 0 {
		return errors.MisalignedSize(errors.PhaseLayout, "zStackSize", zStackSize, StackAlign)
	}
	return nil
}
