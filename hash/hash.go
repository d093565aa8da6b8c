// Package hash provides blake3 hashing and key derivation.
package hash

import "github.com/zeebo/blake3"

// Size of a hash in bytes.
const Size = 32

// Hash is a blake3 digest.
type Hash = [Size]byte

// Sum returns the blake3 hash of the concatenated chunks.
func Sum(chunks ...[]byte) Hash {
	hasher := GetHasher()
	defer PutHasher(hasher)
	for _, chunk := range chunks {
		hasher.Write(chunk)
	}
	var h Hash
	hasher.Sum(h[:0])
	return h
}

// DeriveKey derives Size bytes from material for the given context string.
// The same context and material always produce the same key.
func DeriveKey(context string, material []byte) Hash {
	var key Hash
	blake3.DeriveKey(context, material, key[:])
	return key
}
