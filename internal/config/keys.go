package config

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Keys maps every dotted config key (e.g. "agent.max_iterations") to the
// kind of value it holds.
func Keys() map[string]reflect.Kind {
	keys := make(map[string]reflect.Kind)
	walkKeys(reflect.TypeOf(Config{}), "", keys)
	return keys
}

// KeyNames returns the sorted dotted config keys.
func KeyNames() []string {
	keys := Keys()
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func walkKeys(t reflect.Type, prefix string, out map[string]reflect.Kind) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct {
			walkKeys(ft, prefix+name+".", out)
			continue
		}
		out[prefix+name] = ft.Kind()
	}
}

// ParseValue converts raw to the type held by key.
func ParseValue(key, raw string) (any, error) {
	kind, ok := Keys()[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	switch kind {
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects true or false, got %q", key, raw)
		}
		return b, nil
	case reflect.Int, reflect.Int64:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects an integer, got %q", key, raw)
		}
		return n, nil
	default:
		return raw, nil
	}
}
