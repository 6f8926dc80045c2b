package utils

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hookrelay/hookrelay/pkg/errs"
)

var (
	eventTypeRegexp = regexp.MustCompile(`^[a-zA-Z0-9_\-]+(\.[a-zA-Z0-9_\-]+)*$`)
	slugRegexp      = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_\-]*$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("eventtype", func(fl validator.FieldLevel) bool {
		return eventTypeRegexp.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugRegexp.MatchString(fl.Field().String())
	})
	return v
}

// IsEventType reports whether s is a dotted event type name such as "payment.completed".
func IsEventType(s string) bool {
	return eventTypeRegexp.MatchString(s)
}

func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		validateErr := errs.NewValidateError(errs.ErrRequestValidate)
		t := reflect.ValueOf(v).Type()
		for _, e := range validationErrors {
			fields := strings.Split(e.StructNamespace(), ".")
			node := validateErr.Fields
			parentT := t
			for i := 1; i < len(fields); i++ {
				name, index := splitIndex(fields[i])
				f, ok := getField(parentT, name)
				if !ok {
					continue
				}

				fieldName := fieldName(f)
				if index != "" {
					fieldName = fieldName + index
				}
				if i < len(fields)-1 {
					if node[fieldName] == nil {
						node[fieldName] = make(map[string]interface{})
					}
					node = node[fieldName].(map[string]interface{})
				} else {
					node[fieldName] = formatError(e)
				}
				parentT = f.Type
			}
		}
		return validateErr
	}
	return nil
}

func formatError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required field missing"
	case "oneof":
		return fmt.Sprintf("invalid value: %v", fe.Value())
	case "gt":
		return fmt.Sprintf("value must be > %s", fe.Param())
	case "gte":
		return fmt.Sprintf("value must be >= %s", fe.Param())
	case "lt":
		return fmt.Sprintf("value must be < %s", fe.Param())
	case "lte":
		return fmt.Sprintf("value must be <= %s", fe.Param())
	case "min":
		return fmt.Sprintf("length must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("length must be at most %s", fe.Param())
	case "url", "http_url":
		return "invalid url"
	case "eventtype":
		return fmt.Sprintf("invalid event type: %v", fe.Value())
	case "slug":
		return fmt.Sprintf("invalid endpoint name: %v", fe.Value())
	case "ip|cidr":
		return fmt.Sprintf("invalid ip or cidr: %v", fe.Value())
	}
	return fe.Error()
}

// splitIndex separates "Events[0]" into "Events" and "[0]".
func splitIndex(field string) (string, string) {
	if i := strings.IndexByte(field, '['); i > 0 {
		return field[:i], field[i:]
	}
	return field, ""
}

func fieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		name = field.Name
	}
	return name
}

func getField(t reflect.Type, field string) (reflect.StructField, bool) {
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice || t.Kind() == reflect.Map {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return reflect.StructField{}, false
	}
	return t.FieldByName(field)
}
