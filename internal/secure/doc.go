// Package secure provides memory-protected storage for key material.
//
// Factor material and decrypted vault payloads are wrapped in memguard
// enclaves: encrypted at rest in process memory (XSalsa20Poly1305),
// protected from swapping via mlock where the platform allows it, and
// wiped on destruction. Buffers are immutable after construction; the
// only way at the plaintext is Open/Bytes, both of which hand out a
// fresh copy.
//
// If mlock is unavailable (e.g. RLIMIT_MEMLOCK), memguard degrades to
// standard allocation; the data is still encrypted at rest. For
// complete cleanup of all protected memory at exit, call
// memguard.Purge() from main.
package secure
