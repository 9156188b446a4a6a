package secure

// Sealer encrypts and authenticates blobs bound to an associated context (e.g. a credential id)
type Sealer interface {
	Seal(data, associated []byte) ([]byte, error)
	Open(data, associated []byte) ([]byte, error)
	Clear()
}
