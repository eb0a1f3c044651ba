package configuration

import (
	"os"
	"reflect"
	"strings"

	"gopkg.in/yaml.v2"
)

// envPrefix is the environment variable prefix honored by overrideFromEnv:
// v.Log.Level may be overridden by SEALEDBLOCK_LOG_LEVEL, and so forth.
const envPrefix = "SEALEDBLOCK"

// overrideFromEnv walks v's exported struct fields recursively, replacing
// any field whose PREFIX_FIELD[_SUBFIELD...] environment variable is set,
// the same reflection-based walk distribution's configuration/parser.go
// uses for REGISTRY_-prefixed overrides.
func overrideFromEnv(v interface{}) error {
	env := make(map[string]string, len(os.Environ()))
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		env[parts[0]] = parts[1]
	}

	return overrideFields(reflect.ValueOf(v), envPrefix, env)
}

func overrideFields(v reflect.Value, prefix string, env map[string]string) error {
	for v.Kind() == reflect.Ptr {
		v = reflect.Indirect(v)
	}

	if v.Kind() != reflect.Struct {
		return nil
	}

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}

		fieldPrefix := strings.ToUpper(prefix + "_" + v.Type().Field(i).Name)
		if raw, ok := env[fieldPrefix]; ok {
			target := reflect.New(field.Type())
			if err := yaml.Unmarshal([]byte(raw), target.Interface()); err != nil {
				return err
			}
			field.Set(target.Elem())
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := overrideFields(field, fieldPrefix, env); err != nil {
				return err
			}
		}
	}

	return nil
}
