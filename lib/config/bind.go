package config

import (
	"fmt"
	"github.com/spf13/pflag"
	"github.com/stoewer/go-strcase"
	"reflect"
	"time"
)

// bindFlags registers one flag per exported field of the struct that params points to.
// The flag name is the kebab-cased field name, the help text comes from the
// usage tag and the default is the current field value.
// Fields tagged flag:"-" are skipped.
func bindFlags(params interface{}, flags *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Ptr || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	value = value.Elem()
	for i := 0; i < value.NumField(); i++ {
		field := value.Type().Field(i)
		if !field.IsExported() || field.Tag.Get("flag") == "-" {
			continue
		}
		name := strcase.KebabCase(field.Name)
		usage := field.Tag.Get("usage")
		switch target := value.Field(i).Addr().Interface().(type) {
		case *string:
			flags.StringVar(target, name, *target, usage)
		case *bool:
			flags.BoolVar(target, name, *target, usage)
		case *int:
			flags.IntVar(target, name, *target, usage)
		case *int64:
			flags.Int64Var(target, name, *target, usage)
		case *float64:
			flags.Float64Var(target, name, *target, usage)
		case *time.Duration:
			flags.DurationVar(target, name, *target, usage)
		default:
			return fmt.Errorf("unsupported type %v for flag --%v", field.Type, name)
		}
	}
	return nil
}
