// Package signer produces the detached signatures over repository release
// metadata. Signing happens in process when a key file is supplied, and
// through the external gpg binary with its default keyring otherwise.
package signer

// Signer signs repository metadata
type Signer interface {
	// SignDetached creates an armored detached signature over data.
	SignDetached(data []byte) ([]byte, error)
}
