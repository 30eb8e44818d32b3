// Package securedata holds sensitive bytes (private keys, nonces, decrypted
// payloads) in memory that is locked against swap, excluded from core dumps
// and kept access-protected by the MMU outside explicit scoped windows.
//
// A Buffer is created through [New] or [NewReadOnly]: the region is
// allocated from an [Arena], locked, handed to the initializer while
// writable and then flipped to ReadOnly or NoAccess. From then on the only
// way to mutate it is [Buffer.ReadWrite], which restores the previous
// protection on every exit path including panics. [Buffer.Read] opens a
// read-only window on NoAccess buffers. [Buffer.Release] zero-fills the
// region, unlocks it and returns it to the allocator.
//
// A protection change refused by the OS poisons the buffer: it is wiped and
// freed at once and every later call fails with PROTECTION_TRANSITION_FAILED.
// Allocation never falls back to ordinary memory. Callers that genuinely hold
// non-sensitive bytes use [NewInsecure] or [NewData] with secure=false.
//
// Buffers are not safe for concurrent use. The Arena is.
package securedata
