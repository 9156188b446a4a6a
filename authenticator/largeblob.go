package authenticator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
)

const (
	ExtensionLargeBlob = "largeBlob"

	LargeBlobRequired  = "required"
	LargeBlobPreferred = "preferred"
)

// LargeBlobInputs are the client extension inputs for "largeBlob"
type LargeBlobInputs struct {
	Support string `json:"support,omitempty"`
	Read    bool   `json:"read,omitempty"`
	Write   []byte `json:"write,omitempty"`
}

// LargeBlobOutputs are the client extension outputs for "largeBlob"; absent fields are nil
type LargeBlobOutputs struct {
	Supported *bool  `json:"supported,omitempty"`
	Blob      []byte `json:"blob,omitempty"`
	Written   *bool  `json:"written,omitempty"`
}

// LargeBlobSupport requests large-blob support at registration
func LargeBlobSupport(support string) protocol.AuthenticationExtensions {
	return protocol.AuthenticationExtensions{ExtensionLargeBlob: LargeBlobInputs{Support: support}}
}

// LargeBlobRead requests the stored blob during an assertion
func LargeBlobRead() protocol.AuthenticationExtensions {
	return protocol.AuthenticationExtensions{ExtensionLargeBlob: LargeBlobInputs{Read: true}}
}

// LargeBlobWrite replaces the stored blob during an assertion
func LargeBlobWrite(data []byte) protocol.AuthenticationExtensions {
	if data == nil {
		data = []byte{}
	}
	return protocol.AuthenticationExtensions{ExtensionLargeBlob: LargeBlobInputs{Write: data}}
}

// ParseLargeBlobInputs extracts the largeBlob inputs from ext; returns nil if the extension is absent.
// Values may be LargeBlobInputs or their generic json form
func ParseLargeBlobInputs(ext protocol.AuthenticationExtensions) (*LargeBlobInputs, error) {
	raw, ok := ext[ExtensionLargeBlob]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case LargeBlobInputs:
		return &v, nil
	case *LargeBlobInputs:
		return v, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	result := &LargeBlobInputs{}
	if err = json.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return result, nil
}

// Bool returns a pointer to v, for optional output flags
func Bool(v bool) *bool {
	return &v
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
