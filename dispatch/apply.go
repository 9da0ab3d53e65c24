package dispatch

import (
	"sort"

	"github.com/eosio-wasm/wasm-ld/symtab"
)

// ActionEntry is one declared action: its name and the handler function
// symbol, per §6's "declared action names" input.
type ActionEntry struct {
	Name string
	Func *symtab.Symbol
}

// NotifyEntry is one declared notification handler: `code::action:fn`,
// per §6. Code == WildcardCode means "any contract" (the `*` handler).
type NotifyEntry struct {
	Code   string
	Action string
	Func   *symtab.Symbol
}

// WildcardCode is the notification code naming "any contract", per §4.7.1's
// "Wildcard (*) handlers run in the trailing else" rule.
const WildcardCode = "*"

// Locals for the apply-shaped dispatcher, per §4.7.1.
const (
	LocalReceiver uint32 = 0
	LocalCode     uint32 = 1
	LocalAction   uint32 = 2
)

// ApplyConfig carries everything BuildApply needs: the dedup'd action and
// notification lists, the helper function indices it may call, and the
// optional stack canary configuration.
type ApplyConfig struct {
	Actions []ActionEntry
	Notify  []NotifyEntry

	SetContractName uint32 // eosio_set_contract_name -- always required
	EosioAssertCode uint32 // always required (no-action/onerror guards call it)
	CallCtors       *uint32
	PreDispatch     *uint32
	PostDispatch    *uint32
	CxaFinalize     *uint32

	Canary *CanaryConfig
}

// BuildApply emits the action/notification dispatcher per §4.7.1.
func BuildApply(cfg ApplyConfig) ([]byte, error) {
	if cfg.Canary != nil {
		if err := ValidateCanary(cfg.Canary); err != nil {
			return nil, err
		}
	}

	e := &emitter{}

	e.localGet(LocalReceiver)
	e.call(cfg.SetContractName)

	if cfg.CallCtors != nil {
		e.call(*cfg.CallCtors)
	}

	if cfg.Canary != nil {
		emitCanaryPrologue(e, cfg.Canary)
	}

	if cfg.PreDispatch != nil {
		e.localGet(LocalReceiver)
		e.localGet(LocalCode)
		e.localGet(LocalAction)
		e.call(*cfg.PreDispatch)
		e.ifVoid()
	}

	// if (receiver == code) { action dispatch } else { notification dispatch }
	e.localGet(LocalReceiver)
	e.localGet(LocalCode)
	e.i64Eq()
	e.ifVoid()
	emitActionDispatch(e, cfg)
	e.elseBlock()
	emitNotifyDispatch(e, cfg)
	e.end()

	emitEpilogue(e, cfg)

	if cfg.PreDispatch != nil {
		e.end()
	}
	e.end()

	return wrapBody(e.buf.Bytes(), noLocals), nil
}

func emitEpilogue(e *emitter, cfg ApplyConfig) {
	if cfg.Canary != nil {
		emitCanaryEpilogue(e, cfg.Canary)
	}
	if cfg.CxaFinalize != nil {
		e.i32Const(0) // NULL
		e.call(*cfg.CxaFinalize)
	}
}

// dedupActions returns actions with duplicate names removed, first
// occurrence wins, per §8's "first-seen wins" testable property.
func dedupActions(actions []ActionEntry) []ActionEntry {
	seen := make(map[string]bool, len(actions))
	var out []ActionEntry
	for _, a := range actions {
		if !seen[a.Name] {
			seen[a.Name] = true
			out = append(out, a)
		}
	}
	return out
}

// emitActionDispatch emits the chained if/else testing each declared
// action's name in first-seen order, falling through to the no-action
// guard (or post_dispatch) per §4.7.1's "Action dispatch" rule.
func emitActionDispatch(e *emitter, cfg ApplyConfig) {
	actions := dedupActions(cfg.Actions)

	for _, a := range actions {
		e.i64Const(int64(EncodeName(a.Name)))
		e.localGet(LocalAction)
		e.i64Eq()
		e.ifVoid()
		e.localGet(LocalReceiver)
		e.localGet(LocalCode)
		e.call(a.Func.FuncIndex)
		e.elseBlock()
	}

	e.localGet(LocalReceiver)
	e.i64Const(int64(EncodeName("eosio")))
	e.i64Ne()
	e.ifVoid()
	e.i32Const(0)
	e.i64Const(EOSIOErrorNoAction)
	e.call(cfg.EosioAssertCode)
	if cfg.PostDispatch != nil {
		e.elseBlock()
		e.localGet(LocalReceiver)
		e.localGet(LocalCode)
		e.localGet(LocalAction)
		e.call(*cfg.PostDispatch)
	}
	e.end()

	for range actions {
		e.end()
	}
}

// emitNotifyDispatch emits the code-grouped notification dispatch tree,
// per §4.7.1's "Notification dispatch" rule, including the synthesized
// eosio::onerror guard when no explicit handler was declared for it.
//
// codeOrder is sorted rather than first-seen, matching the original
// linker's std::map<name, ...> grouping (Writer.cpp) byte-for-byte.
func emitNotifyDispatch(e *emitter, cfg ApplyConfig) {
	byCode := make(map[string][]NotifyEntry)
	var codeOrder []string
	hasOnError := false
	var wildcard []NotifyEntry

	for _, n := range cfg.Notify {
		if n.Code == WildcardCode {
			wildcard = append(wildcard, n)
			continue
		}
		if _, ok := byCode[n.Code]; !ok {
			codeOrder = append(codeOrder, n.Code)
		}
		byCode[n.Code] = append(byCode[n.Code], n)
		if n.Code == "eosio" && n.Action == "onerror" {
			hasOnError = true
		}
	}
	sort.Strings(codeOrder)

	if !hasOnError {
		emitOnErrorGuard(e, cfg.EosioAssertCode)
	}

	for _, code := range codeOrder {
		e.localGet(LocalCode)
		e.i64Const(int64(EncodeName(code)))
		e.i64Eq()
		e.ifVoid()
		emitHandlerChain(e, dedupByAction(byCode[code]))
		e.elseBlock()
	}

	emitWildcardChain(e, wildcard, cfg.PostDispatch)

	for range codeOrder {
		e.end()
	}
}

// emitOnErrorGuard synthesizes the guard for an undeclared eosio::onerror
// handler, per §4.7.1: a nested if on code==eosio, action==onerror, calling
// eosio_assert_code(0, EOSIO_ERROR_ONERROR).
func emitOnErrorGuard(e *emitter, eosioAssertCode uint32) {
	e.localGet(LocalCode)
	e.i64Const(int64(EncodeName("eosio")))
	e.i64Eq()
	e.ifVoid()
	e.localGet(LocalAction)
	e.i64Const(int64(EncodeName("onerror")))
	e.i64Eq()
	e.ifVoid()
	e.i32Const(0)
	e.i64Const(EOSIOErrorOnError)
	e.call(eosioAssertCode)
	e.end()
	e.end()
}

func dedupByAction(entries []NotifyEntry) []NotifyEntry {
	seen := make(map[string]bool, len(entries))
	var out []NotifyEntry
	for _, n := range entries {
		if !seen[n.Action] {
			seen[n.Action] = true
			out = append(out, n)
		}
	}
	return out
}

func emitHandlerChain(e *emitter, chain []NotifyEntry) {
	for _, n := range chain {
		e.localGet(LocalAction)
		e.i64Const(int64(EncodeName(n.Action)))
		e.i64Eq()
		e.ifVoid()
		e.localGet(LocalReceiver)
		e.localGet(LocalCode)
		e.call(n.Func.FuncIndex)
		e.elseBlock()
	}
	for range chain {
		e.end()
	}
}

// emitWildcardChain emits the trailing-else wildcard handler chain, with
// post_dispatch (if present) running in its innermost else, per §4.7.1.
func emitWildcardChain(e *emitter, wildcard []NotifyEntry, postDispatch *uint32) {
	wildcard = dedupByAction(wildcard)
	for _, n := range wildcard {
		e.localGet(LocalAction)
		e.i64Const(int64(EncodeName(n.Action)))
		e.i64Eq()
		e.ifVoid()
		e.localGet(LocalReceiver)
		e.localGet(LocalCode)
		e.call(n.Func.FuncIndex)
		e.elseBlock()
	}
	if postDispatch != nil {
		e.localGet(LocalReceiver)
		e.localGet(LocalCode)
		e.localGet(LocalAction)
		e.call(*postDispatch)
	}
	for range wildcard {
		e.end()
	}
}
