package provider

import (
	"errors"

	"github.com/foretell-app/foretell/config"
)

// LayeredProvider applies providers in order; later providers override earlier ones
type LayeredProvider struct {
	layers []config.ConfigProvider
}

func NewLayeredProvider(layers ...config.ConfigProvider) *LayeredProvider {
	result := &LayeredProvider{}
	for _, l := range layers {
		if l != nil {
			result.layers = append(result.layers, l)
		}
	}
	return result
}

func (l *LayeredProvider) Get(dest interface{}) error {
	applied := false
	for _, layer := range l.layers {
		err := layer.Get(dest)
		if errors.Is(err, config.ErrNotImplemented) {
			continue
		}
		if err != nil {
			return err
		}
		applied = true
	}
	if !applied {
		return config.ErrNotImplemented
	}
	return nil
}

func (l *LayeredProvider) GetKey(key string, dest interface{}) error {
	applied := false
	for _, layer := range l.layers {
		if !layer.KeyExists(key) {
			continue
		}
		if err := layer.GetKey(key, dest); err != nil {
			return err
		}
		applied = true
	}
	if !applied {
		return config.ErrNoKey
	}
	return nil
}

func (l *LayeredProvider) GetStringKey(key string) (string, error) {
	var result string
	err := l.GetKey(key, &result)
	return result, err
}

func (l *LayeredProvider) GetBoolKey(key string) (bool, error) {
	var result bool
	err := l.GetKey(key, &result)
	return result, err
}

func (l *LayeredProvider) GetIntKey(key string) (int, error) {
	var result int
	err := l.GetKey(key, &result)
	return result, err
}

// GetConfigNode returns the node from the last layer that supports it
func (l *LayeredProvider) GetConfigNode(key string) (config.ConfigProvider, error) {
	for i := len(l.layers) - 1; i >= 0; i-- {
		if node, err := l.layers[i].GetConfigNode(key); err == nil {
			return node, nil
		}
	}
	return nil, config.ErrNoKey
}

func (l *LayeredProvider) KeyExists(key string) bool {
	for _, layer := range l.layers {
		if layer.KeyExists(key) {
			return true
		}
	}
	return false
}
