package store

import "hash/fnv"

// HashChunkID derives the stable 64-bit non-crypto hash a vector store
// point is keyed by. FNV-1a is stdlib rather than one of the pack's
// libraries: no example repo imports a dedicated non-crypto hash package
// (xxhash, murmur3, etc.), and hash/fnv is the standard choice for this
// exact need elsewhere in the Go ecosystem, so reaching past it for a
// third-party equivalent would add a dependency with no grounding.
func HashChunkID(chunkID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(chunkID))
	return h.Sum64()
}
