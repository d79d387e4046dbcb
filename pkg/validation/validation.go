// Package validation holds the struct validator shared by the directory
// loader and the HTTP API. Fields are reported by their JSON names.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Struct validates s against its validate tags
func Struct(s interface{}) error {
	return validate.Struct(s)
}

// Describe renders a validation failure as sorted `field failed "tag"`
// problems joined by "; ". Nested fields keep their path, e.g. origin.lat.
// Other errors are returned as their message.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// drop the struct type from the namespace
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		problems = append(problems, fmt.Sprintf("%s failed %q", field, fe.Tag()))
	}
	sort.Strings(problems)
	return strings.Join(problems, "; ")
}
