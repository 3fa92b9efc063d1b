package router

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var uuidType = reflect.TypeOf(uuid.UUID{})

// DecodeParams copies matched route parameters into the `param`-tagged
// fields of the struct target points to. Loaders use it to turn
// preload.Context.Params into typed values:
//
//	var p struct {
//		ID   int      `param:"id"`
//		Path []string `param:"path"`
//	}
//	if err := router.DecodeParams(pc.Params, &p); err != nil {
//		return err
//	}
//
// Parameters missing from params leave their fields untouched.
func DecodeParams(params map[string]string, target any) error {
	if target == nil {
		return nil
	}
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Pointer || ptr.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("router: DecodeParams needs a pointer to a struct, got %T", target)
	}

	s := ptr.Elem()
	for i := 0; i < s.NumField(); i++ {
		f := s.Type().Field(i)
		tag := f.Tag.Get("param")
		if tag == "" || !f.IsExported() {
			continue
		}
		raw, ok := params[tag]
		if !ok {
			continue
		}
		if err := assign(s.Field(i), raw); err != nil {
			return fmt.Errorf("router: param %q: %w", tag, err)
		}
	}
	return nil
}

func assign(dst reflect.Value, raw string) error {
	t := dst.Type()
	switch {
	case t == uuidType:
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("%q is not a UUID", raw)
		}
		dst.Set(reflect.ValueOf(id))
		return nil

	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.String:
		// Catch-all segments.
		var segs []string
		if raw != "" {
			segs = strings.Split(raw, "/")
		}
		dst.Set(reflect.ValueOf(segs).Convert(t))
		return nil
	}

	switch t.Kind() {
	case reflect.String:
		dst.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%q is not a boolean", raw)
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, t.Bits())
		if err != nil {
			return fmt.Errorf("%q does not fit in %s", raw, t)
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, t.Bits())
		if err != nil {
			return fmt.Errorf("%q does not fit in %s", raw, t)
		}
		dst.SetUint(n)
	default:
		return fmt.Errorf("cannot decode into %s", t)
	}
	return nil
}

// ValidateParam reports whether value satisfies a segment type constraint
// such as `:id:int`. Unknown constraints accept anything.
func ValidateParam(value, constraint string) error {
	var err error
	switch strings.TrimRight(constraint, "0123456789") {
	case "int":
		_, err = strconv.ParseInt(value, 10, 64)
	case "uint":
		_, err = strconv.ParseUint(value, 10, 64)
	case "uuid":
		_, err = uuid.Parse(value)
	}
	if err != nil {
		return fmt.Errorf("router: %q is not a valid %s", value, constraint)
	}
	return nil
}
