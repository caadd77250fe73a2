/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package meta

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Coerce converts a decoded JSON value (or a URL string) to the field's Go
// type. The returned value never is a pointer; nil stays nil.
func (f *Field) Coerce(value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	ptr := reflect.New(f.goType)
	if err := assign(ptr, value); err != nil {
		return nil, fmt.Errorf("invalid value %v for field '%s': %w", value, f.Name, err)
	}
	return ptr.Elem().Interface(), nil
}

// CoerceList coerces every element of a JSON array.
func (f *Field) CoerceList(value interface{}) ([]interface{}, error) {
	items, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("field '%s' expects a list, got %v", f.Name, value)
	}
	result := make([]interface{}, 0, len(items))
	for _, item := range items {
		v, err := f.Coerce(item)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

func assign(ptr reflect.Value, value interface{}) error {
	elem := ptr.Elem()
	if n, ok := value.(json.Number); ok && elem.Kind() == reflect.String {
		elem.SetString(n.String())
		return nil
	}
	if s, ok := value.(string); ok {
		if elem.Type() == timeType {
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					elem.Set(reflect.ValueOf(t))
					return nil
				}
			}
			return fmt.Errorf("cannot parse %q as datetime", s)
		}
		if ptr.Type().Implements(textUnmarshalerType) {
			return ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
		}
		switch elem.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, elem.Type().Bits())
			if err != nil {
				return err
			}
			elem.SetInt(n)
			return nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n, err := strconv.ParseUint(strings.TrimSpace(s), 10, elem.Type().Bits())
			if err != nil {
				return err
			}
			elem.SetUint(n)
			return nil
		case reflect.Float32, reflect.Float64:
			n, err := strconv.ParseFloat(strings.TrimSpace(s), elem.Type().Bits())
			if err != nil {
				return err
			}
			elem.SetFloat(n)
			return nil
		case reflect.Bool:
			b, err := strconv.ParseBool(strings.TrimSpace(s))
			if err != nil {
				return err
			}
			elem.SetBool(b)
			return nil
		}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, ptr.Interface())
}
