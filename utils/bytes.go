package utils

import "crypto/rand"

// GenerateRandomBytes returns n bytes from the system CSPRNG
func GenerateRandomBytes(n uint32) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
