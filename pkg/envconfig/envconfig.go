package envconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Reader looks up the value of an environment key.
type Reader func(key string) (value string, ok bool, err error)

// EnvironmentReader reads from the process environment.
func EnvironmentReader(key string) (string, bool, error) {
	value, ok := os.LookupEnv(key)
	return value, ok, nil
}

// Decoder lets a type parse its own environment representation.
type Decoder interface {
	Decode(value string) error
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	decoderType  = reflect.TypeOf((*Decoder)(nil)).Elem()
)

// Process overlays environment values on target. Keys are built as
// PREFIX_FIELD where FIELD is the envconfig tag or the upper-cased field
// name; nested structs extend the prefix. Fields without a matching key
// keep their current value, so defaults and file values survive.
func Process(prefix string, target interface{}) error {
	return ProcessWithReader(prefix, target, EnvironmentReader)
}

func ProcessWithReader(prefix string, target interface{}, reader Reader) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("envconfig: target must be a pointer to a struct, got %T", target)
	}
	return process(strings.ToUpper(prefix), v.Elem(), reader)
}

func process(prefix string, v reflect.Value, reader Reader) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)
		tag := field.Tag.Get("envconfig")
		if tag == "-" {
			continue
		}

		if field.Anonymous && value.Kind() == reflect.Struct {
			if err := process(prefix, value, reader); err != nil {
				return err
			}
			continue
		}
		if !value.CanSet() {
			continue
		}

		name := tag
		if name == "" {
			name = field.Name
		}
		key := strings.ToUpper(name)
		if prefix != "" {
			key = prefix + "_" + key
		}

		if value.Kind() == reflect.Struct && !implementsDecoder(value) {
			if err := process(key, value, reader); err != nil {
				return err
			}
			continue
		}

		raw, ok, err := reader(key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := assign(value, raw); err != nil {
			return fmt.Errorf("envconfig: failed to assign %s: %w", key, err)
		}
	}
	return nil
}

func implementsDecoder(v reflect.Value) bool {
	return v.CanAddr() && v.Addr().Type().Implements(decoderType)
}

func assign(v reflect.Value, raw string) error {
	if implementsDecoder(v) {
		return v.Addr().Interface().(Decoder).Decode(raw)
	}

	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return assign(v.Elem(), raw)
	}

	if v.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		v.SetInt(int64(d))
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 0, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 0, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Slice:
		if strings.HasPrefix(strings.TrimSpace(raw), "[") {
			return json.Unmarshal([]byte(raw), v.Addr().Interface())
		}
		parts := make([]string, 0)
		if raw != "" {
			parts = strings.Split(raw, ",")
		}
		slice := reflect.MakeSlice(v.Type(), len(parts), len(parts))
		for i, part := range parts {
			if err := assign(slice.Index(i), strings.TrimSpace(part)); err != nil {
				return err
			}
		}
		v.Set(slice)
	case reflect.Map:
		return json.Unmarshal([]byte(raw), v.Addr().Interface())
	default:
		return fmt.Errorf("unsupported kind %s", v.Kind())
	}
	return nil
}
