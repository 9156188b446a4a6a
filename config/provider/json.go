package provider

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/foretell-app/foretell/config"
	"github.com/foretell-app/foretell/utils"
)

const (
	ErrJsonInvalidSource = utils.Error("NewJsonProvider: Invalid source type")
)

type JsonProvider struct {
	configData map[string]json.RawMessage
	m          sync.RWMutex
}

// NewJsonProvider builds a provider from a file name, a reader, raw bytes or a json.RawMessage
func NewJsonProvider(src interface{}) (config.ConfigProvider, error) {
	provider := &JsonProvider{
		configData: make(map[string]json.RawMessage),
	}
	var data []byte
	switch v := src.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	case io.Reader:
		buf, err := io.ReadAll(v)
		if err != nil {
			return nil, err
		}
		data = buf
	case string:
		buf, err := os.ReadFile(v)
		if err != nil {
			return nil, err
		}
		data = buf
	default:
		return nil, ErrJsonInvalidSource
	}
	if err := json.Unmarshal(data, &provider.configData); err != nil {
		return nil, err
	}
	return provider, nil
}

// GetKey de-serializes key into dest; fields absent from the json keep their current value
func (j *JsonProvider) GetKey(key string, dest interface{}) error {
	j.m.RLock()
	defer j.m.RUnlock()
	v, ok := j.configData[key]
	if !ok {
		return config.ErrNoKey
	}
	return json.Unmarshal(v, dest)
}

// Get de-serializes everything to dest
func (j *JsonProvider) Get(dest interface{}) error {
	j.m.RLock()
	defer j.m.RUnlock()
	data, err := json.Marshal(j.configData)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (j *JsonProvider) GetStringKey(key string) (string, error) {
	var result string
	err := j.GetKey(key, &result)
	return result, err
}

func (j *JsonProvider) GetBoolKey(key string) (bool, error) {
	var result bool
	err := j.GetKey(key, &result)
	return result, err
}

func (j *JsonProvider) GetIntKey(key string) (int, error) {
	var result int
	err := j.GetKey(key, &result)
	return result, err
}

func (j *JsonProvider) GetConfigNode(key string) (config.ConfigProvider, error) {
	j.m.RLock()
	defer j.m.RUnlock()
	if v, ok := j.configData[key]; ok {
		return NewJsonProvider(v)
	}
	return nil, config.ErrNoKey
}

func (j *JsonProvider) KeyExists(key string) bool {
	j.m.RLock()
	defer j.m.RUnlock()
	_, ok := j.configData[key]
	return ok
}
