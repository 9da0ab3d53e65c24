package abimerge

import (
	"encoding/json"
	"testing"
)

func mustHaveNames(t *testing.T, result string, key string, want []string) {
	t.Helper()
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(result), &doc); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	var entries []named
	if err := json.Unmarshal(doc[key], &entries); err != nil {
		t.Fatalf("key %q is not an array of named entries: %v", key, err)
	}
	if len(entries) != len(want) {
		t.Fatalf("key %q: got %d entries, want %d (%+v)", key, len(entries), len(want), entries)
	}
	for i, w := range want {
		if entries[i].Name != w {
			t.Errorf("key %q[%d] = %q, want %q", key, i, entries[i].Name, w)
		}
	}
}

func TestJSONMerger_MergeDedupsActionsByName(t *testing.T) {
	seed := `{"version":"eosio::abi/1.1","actions":[{"name":"transfer"}]}`
	other := `{"actions":[{"name":"transfer"},{"name":"issue"}]}`

	m := JSONMerger{}
	result, err := m.Merge(seed, []string{other})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustHaveNames(t, result, "actions", []string{"transfer", "issue"})
}

func TestJSONMerger_EmptyAbisStillAppliesSeedTwice(t *testing.T) {
	// Regression for the preserved seed-double-apply quirk: merging with
	// an empty abis list must still succeed and produce the seed's own
	// entries exactly once (dedup absorbs the second application).
	seed := `{"actions":[{"name":"transfer"}]}`
	m := JSONMerger{}
	result, err := m.Merge(seed, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustHaveNames(t, result, "actions", []string{"transfer"})
}

func TestJSONMerger_MergesAcrossAllFiveArrays(t *testing.T) {
	seed := `{"tables":[{"name":"accounts"}],"structs":[{"name":"transfer"}],` +
		`"ricardian_clauses":[{"name":"clause1"}],"variants":[{"name":"v1"}]}`
	other := `{"tables":[{"name":"stats"}],"structs":[{"name":"issue"}],` +
		`"ricardian_clauses":[{"name":"clause2"}],"variants":[{"name":"v2"}]}`

	m := JSONMerger{}
	result, err := m.Merge(seed, []string{other})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustHaveNames(t, result, "tables", []string{"accounts", "stats"})
	mustHaveNames(t, result, "structs", []string{"transfer", "issue"})
	mustHaveNames(t, result, "ricardian_clauses", []string{"clause1", "clause2"})
	mustHaveNames(t, result, "variants", []string{"v1", "v2"})
}

func TestJSONMerger_MalformedJSONReturnsError(t *testing.T) {
	m := JSONMerger{}
	_, err := m.Merge("{not valid json", nil)
	if err == nil {
		t.Error("expected an error for malformed seed JSON")
	}
}

func TestJSONMerger_PreservesVersionFromSeed(t *testing.T) {
	seed := `{"version":"eosio::abi/1.2"}`
	m := JSONMerger{}
	result, err := m.Merge(seed, []string{`{"version":"eosio::abi/1.0"}`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(result), &doc); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	var version string
	if err := json.Unmarshal(doc["version"], &version); err != nil {
		t.Fatalf("version is not a string: %v", err)
	}
	if version != "eosio::abi/1.2" {
		t.Errorf("expected seed's version to win, got %q", version)
	}
}
