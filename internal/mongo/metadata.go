// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mongo

import (
	"reflect"
	"strings"

	"github.com/juju/mgo/v3/bson"
)

// Mongo does not allow "." or "$" in document keys, so caller metadata is
// stored with them replaced by their full width equivalents.
const (
	fullWidthDot    = "．"
	fullWidthDollar = "＄"
)

var (
	keyEscaper   = strings.NewReplacer(".", fullWidthDot, "$", fullWidthDollar)
	keyUnescaper = strings.NewReplacer(fullWidthDot, ".", fullWidthDollar, "$")
)

// EscapeKey returns key in a form that can be stored as a document key.
func EscapeKey(key string) string {
	return keyEscaper.Replace(key)
}

// UnescapeKey reverses EscapeKey.
func UnescapeKey(key string) string {
	return keyUnescaper.Replace(key)
}

// EscapeKeys returns a copy of metadata with every key escaped, including
// the keys of nested documents. Nested maps with string keys, whatever
// their type, are copied as map[string]interface{}.
func EscapeKeys(metadata map[string]interface{}) map[string]interface{} {
	return mapKeys(metadata, EscapeKey)
}

// UnescapeKeys reverses EscapeKeys.
func UnescapeKeys(metadata map[string]interface{}) map[string]interface{} {
	return mapKeys(metadata, UnescapeKey)
}

func mapKeys(in map[string]interface{}, f func(string) string) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for key, value := range in {
		out[f(key)] = mapValue(value, f)
	}
	return out
}

func mapValue(value interface{}, f func(string) string) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		return mapKeys(v, f)
	case bson.M:
		return mapKeys(v, f)
	case map[string]string:
		if v == nil {
			return nil
		}
		out := make(map[string]interface{}, len(v))
		for key, elem := range v {
			out[f(key)] = elem
		}
		return out
	case bson.D:
		out := make(bson.D, len(v))
		for i, elem := range v {
			out[i] = bson.DocElem{Name: f(elem.Name), Value: mapValue(elem.Value, f)}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = mapValue(elem, f)
		}
		return out
	}
	return mapReflectValue(reflect.ValueOf(value), f)
}

// mapReflectValue handles the map and slice types not named in mapValue.
func mapReflectValue(v reflect.Value, f func(string) string) interface{} {
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			break
		}
		if v.IsNil() {
			return nil
		}
		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[f(iter.Key().String())] = mapValue(iter.Value().Interface(), f)
		}
		return out
	case reflect.Slice:
		switch v.Type().Elem().Kind() {
		case reflect.Map, reflect.Slice, reflect.Interface:
		default:
			return v.Interface()
		}
		if v.IsNil() {
			return nil
		}
		out := make([]interface{}, v.Len())
		for i := range out {
			out[i] = mapValue(v.Index(i).Interface(), f)
		}
		return out
	}
	return v.Interface()
}
