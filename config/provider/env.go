package provider

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/foretell-app/foretell/config"
	"github.com/foretell-app/foretell/runtime"
	"github.com/gobeam/stringy"
)

const CommaSeparator = ","

type EnvProvider struct {
	prefix     string
	configData map[string]string
}

// NewEnvProvider builds a provider from the environment variables starting with prefix.
// Keys are looked up as PREFIX_KEY; struct fields as PREFIX_KEY_FIELD, where FIELD is the
// `env` tag, or the json tag / field name converted from camelCase to SNAKE_CASE
func NewEnvProvider(prefix string) *EnvProvider {
	provider := &EnvProvider{
		prefix:     strings.ToUpper(strings.TrimSuffix(prefix, "_")),
		configData: make(map[string]string),
	}
	for _, env := range os.Environ() {
		toks := strings.SplitN(env, "=", 2)
		if len(toks) == 2 && strings.HasPrefix(toks[0], provider.prefix+"_") {
			provider.configData[toks[0]] = toks[1]
		}
	}
	return provider
}

func snakeUpper(key string) string {
	return stringy.New(key).SnakeCase("?", "").ToUpper()
}

func (e *EnvProvider) envKey(parts ...string) string {
	key := e.prefix
	for _, p := range parts {
		key += "_" + snakeUpper(p)
	}
	return key
}

func fieldName(field reflect.StructField) string {
	if name, ok := runtime.TagName(field, "env"); ok {
		return strings.ToUpper(name)
	}
	if name, ok := runtime.TagName(field, "json"); ok {
		return snakeUpper(name)
	}
	return snakeUpper(field.Name)
}

func setValue(v reflect.Value, raw string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		if v.Kind() == reflect.Uint || v.Kind() == reflect.Uint64 {
			v.SetUint(uint64(n))
		} else {
			v.SetInt(n)
		}
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.String {
			return config.ErrInvalidType
		}
		items := reflect.MakeSlice(v.Type(), 0, 0)
		for _, s := range strings.Split(raw, CommaSeparator) {
			items = reflect.Append(items, reflect.ValueOf(strings.TrimSpace(s)))
		}
		v.Set(items)
	default:
		return config.ErrInvalidType
	}
	return nil
}

// readStruct fills the struct fields that have a matching env var; embedded structs share the prefix
func (e *EnvProvider) readStruct(prefix string, v reflect.Value) (bool, error) {
	found := false
	for i := 0; i < v.NumField(); i++ {
		field := v.Type().Field(i)
		if !field.IsExported() {
			continue
		}
		fv := v.Field(i)
		if field.Anonymous && fv.Kind() == reflect.Struct {
			ok, err := e.readStruct(prefix, fv)
			if err != nil {
				return found, err
			}
			found = found || ok
			continue
		}
		raw, ok := e.configData[prefix+"_"+fieldName(field)]
		if !ok {
			continue
		}
		if err := setValue(fv, raw); err != nil {
			return found, err
		}
		found = true
	}
	return found, nil
}

// GetKey reads an env key into dest. If dest is a pointer to a struct, key is used as a prefix
func (e *EnvProvider) GetKey(key string, dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return config.ErrInvalidType
	}
	v = v.Elem()
	if v.Kind() == reflect.Struct {
		found, err := e.readStruct(e.envKey(key), v)
		if err != nil {
			return err
		}
		if !found {
			return config.ErrNoKey
		}
		return nil
	}
	raw, ok := e.configData[e.envKey(key)]
	if !ok {
		return config.ErrNoKey
	}
	return setValue(v, raw)
}

// Get is not supported for env vars, as there is no way to enumerate the destination keys
func (e *EnvProvider) Get(dest interface{}) error {
	return config.ErrNotImplemented
}

func (e *EnvProvider) GetStringKey(key string) (string, error) {
	v, ok := e.configData[e.envKey(key)]
	if !ok {
		return "", config.ErrNoKey
	}
	return v, nil
}

func (e *EnvProvider) GetBoolKey(key string) (bool, error) {
	if v, ok := e.configData[e.envKey(key)]; ok {
		return strconv.ParseBool(v)
	}
	return false, config.ErrNoKey
}

func (e *EnvProvider) GetIntKey(key string) (int, error) {
	if v, ok := e.configData[e.envKey(key)]; ok {
		return strconv.Atoi(v)
	}
	return 0, config.ErrNoKey
}

func (e *EnvProvider) GetConfigNode(key string) (config.ConfigProvider, error) {
	return nil, config.ErrNotImplemented
}

// KeyExists returns true if key is set, or if any variable uses key as a prefix
func (e *EnvProvider) KeyExists(key string) bool {
	k := e.envKey(key)
	for name := range e.configData {
		if name == k || strings.HasPrefix(name, k+"_") {
			return true
		}
	}
	return false
}
