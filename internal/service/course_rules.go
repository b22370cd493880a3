package service

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/noah-isme/course-catalog-api/internal/dto"
)

var (
	courseRulesOnce sync.Once
	courseRules     *validator.Validate
)

// NewCourseValidator returns a validator with the course rule tags registered.
func NewCourseValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = v.RegisterValidation("trimmin", trimMin)
	_ = v.RegisterValidation("anynonblank", anyNonBlank)
	_ = v.RegisterValidation("finite", finite)
	_ = v.RegisterValidation("uniqueids", uniqueIDs)
	return v
}

func defaultCourseValidator() *validator.Validate {
	courseRulesOnce.Do(func() {
		courseRules = NewCourseValidator()
	})
	return courseRules
}

// ValidateCourse checks a candidate against every course rule and reports all
// violations at once. It has no side effects.
func ValidateCourse(candidate dto.CourseCandidate) dto.ValidationResult {
	result := dto.ValidationResult{IsValid: true, Errors: []string{}}
	err := defaultCourseValidator().Struct(candidate)
	if err == nil {
		return result
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		result.IsValid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.IsValid = false
	for _, fe := range fieldErrs {
		result.Errors = append(result.Errors, courseRuleMessage(fe))
	}
	return result
}

func courseRuleMessage(fe validator.FieldError) string {
	field := fieldPath(fe)
	if fe.Tag() == "uniqueids" {
		if field == "curriculum" {
			return "curriculum module ids must be unique"
		}
		return fmt.Sprintf("%s ids must be unique", field)
	}
	switch field {
	case "title":
		return fmt.Sprintf("title must be at least %s characters", fe.Param())
	case "description":
		return fmt.Sprintf("description must be at least %s characters", fe.Param())
	case "category":
		return "category is required"
	case "level":
		return "level is required"
	case "price":
		return "price must be a number greater than or equal to 0"
	case "objectives":
		return "at least one objective is required"
	case "curriculum":
		return "curriculum must contain at least one module"
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", field)
}

// fieldPath drops the root struct name from the namespace,
// e.g. "CourseCandidate.curriculum[0].lessons[1].title".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func trimMin(fl validator.FieldLevel) bool {
	min, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= min
}

func anyNonBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Slice && field.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < field.Len(); i++ {
		item := field.Index(i)
		if item.Kind() == reflect.String && strings.TrimSpace(item.String()) != "" {
			return true
		}
	}
	return false
}

// uniqueIDs fails when two elements of a struct slice share a non-blank ID.
// Blank ids are assigned on save.
func uniqueIDs(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Slice && field.Kind() != reflect.Array {
		return false
	}
	seen := make(map[string]struct{}, field.Len())
	for i := 0; i < field.Len(); i++ {
		item := reflect.Indirect(field.Index(i))
		if item.Kind() != reflect.Struct {
			return false
		}
		id := item.FieldByName("ID")
		if !id.IsValid() || id.Kind() != reflect.String {
			return false
		}
		key := strings.TrimSpace(id.String())
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
	}
	return true
}

func finite(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return true
}
