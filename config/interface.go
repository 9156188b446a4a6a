package config

import "github.com/foretell-app/foretell/utils"

const (
	ErrNoKey          = utils.Error("Config key does not exist")
	ErrNotImplemented = utils.Error("Config method or type not implemented")
	ErrInvalidType    = utils.Error("Invalid destination type")
)

type ConfigProvider interface {
	Get(dest interface{}) error
	GetKey(key string, dest interface{}) error
	GetStringKey(key string) (string, error)
	GetBoolKey(key string) (bool, error)
	GetIntKey(key string) (int, error)
	GetConfigNode(key string) (ConfigProvider, error)
	KeyExists(key string) bool
}

// Validator is implemented by component configs that can check themselves after loading
type Validator interface {
	Validate() error
}

// Load reads key into dest and validates it; a missing key keeps the defaults already in dest
func Load(provider ConfigProvider, key string, dest Validator) error {
	if provider != nil && provider.KeyExists(key) {
		if err := provider.GetKey(key, dest); err != nil {
			return err
		}
	}
	return dest.Validate()
}
