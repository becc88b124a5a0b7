package domain

// WrappedDek is a DEK sealed under a master key version. Nonce is the wrap nonce and
// Ciphertext includes the authentication tag.
type WrappedDek struct {
	Nonce            []byte
	Ciphertext       []byte
	MasterKeyVersion uint
}
