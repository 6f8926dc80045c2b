package dao

import (
	"reflect"
	"strings"

	"github.com/hookrelay/hookrelay/utils"
)

// EachField traverse each database field
func EachField(entity interface{}, fn func(field reflect.StructField, value reflect.Value, column string)) {
	t := reflect.TypeOf(entity)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	v := reflect.ValueOf(entity)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)
		column := utils.DefaultIfZero(field.Tag.Get("db"), strings.ToLower(field.Name))
		if column == "-" {
			continue
		}
		if field.Anonymous {
			EachField(value.Interface(), fn)
		} else {
			fn(field, value, column)
		}
	}
}

// ColumnValue returns the value of the field mapped to column.
func ColumnValue(entity interface{}, column string) (value interface{}, ok bool) {
	EachField(entity, func(f reflect.StructField, v reflect.Value, c string) {
		if c == column {
			value, ok = v.Interface(), true
		}
	})
	return
}

func entityID(entity interface{}) string {
	id, _ := ColumnValue(entity, "id")
	s, _ := id.(string)
	return s
}
