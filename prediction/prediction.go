package prediction

import (
	"encoding/json"
	"fmt"

	"github.com/foretell-app/foretell/utils"
)

const (
	ErrDecode = utils.Error("invalid prediction payload")
)

// Prediction is an immutable committed prediction; Content carries the salt marker
type Prediction struct {
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Hash      string `json:"hash"`
	TxHash    string `json:"txHash,omitempty"`
}

// Encode serializes the full list; a nil list is encoded as an empty array
func Encode(list []Prediction) ([]byte, error) {
	if list == nil {
		list = []Prediction{}
	}
	return json.Marshal(list)
}

// Decode parses a serialized list; an empty payload decodes to an empty list
func Decode(data []byte) ([]Prediction, error) {
	result := []Prediction{}
	if len(data) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if result == nil {
		// "null"
		result = []Prediction{}
	}
	return result, nil
}

// Append returns a new list with p added at the end; list is never modified
func Append(list []Prediction, p Prediction) []Prediction {
	result := make([]Prediction, 0, len(list)+1)
	result = append(result, list...)
	return append(result, p)
}

// Clone returns a copy of list, preserving nil
func Clone(list []Prediction) []Prediction {
	if list == nil {
		return nil
	}
	result := make([]Prediction, len(list))
	copy(result, list)
	return result
}
