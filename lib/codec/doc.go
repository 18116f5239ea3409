// Package codec provides value codecs for the typed key-value store. The engine only
// persists opaque byte arrays; a codec turns arbitrary Go values into those bytes and back.
//
// Key Components:
//
//   - ICodec: Core interface that all codec implementations must satisfy.
//
//   - jsonCodecImpl: Implementation using JSON encoding. Human-readable, which makes it
//     the default for the CLI, and the round trip is deep-equal for exported fields.
//
//   - gobCodecImpl: Implementation using Go's gob encoding. Compact for structs with many
//     numeric fields and keeps the exact Go types (e.g. time.Time, int64).
//
//   - rawCodecImpl: Stores []byte and string values unchanged. Useful for audio metadata
//     blobs or values written by other tools.
//
// Thread Safety:
//
//	All codec implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	c, err := codec.ByName("json")
//	data, err := c.Encode(handle)
//	// ... store data ...
//	var restored library.FileHandle
//	err = c.Decode(data, &restored)
package codec
