package ruletable

import (
	"github.com/cespare/xxhash/v2"

	"ifthen/keys"
)

// hashName turns a DSL-declared name into a uint64 key (SPEC_FULL.md §6:
// "ruletable turns each into a uint64 key via github.com/cespare/xxhash/v2").
// scope is the enclosing chunk's name, so identically named statuses or
// expressions in two different chunks never collide — Reservoir and
// Evaluator key their maps globally, not per chunk (spec.md §3/§4.2).
func hashName(scope, name string) uint64 {
	return xxhash.Sum64String(scope + "\x00" + name)
}

func chunkKeyFor(name string) keys.ChunkKey {
	return keys.ChunkKey(xxhash.Sum64String(name))
}

// ChunkKey, StatusKey and ExpressionKey expose the same name-hashing Build
// uses internally, so a host (e.g. repl.go) can resolve a DSL name back to
// the key it registered under without re-parsing the source.
func ChunkKey(name string) keys.ChunkKey { return chunkKeyFor(name) }

func StatusKey(chunk, name string) keys.StatusKey {
	return keys.StatusKey(hashName(chunk, name))
}

func ExpressionKey(chunk, name string) keys.ExpressionKey {
	return keys.ExpressionKey(hashName(chunk, name))
}
