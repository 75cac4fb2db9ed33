package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"gitlab.com/dirk.krummacker/contacts-directory/internal/model"
)

// phonePattern lists the characters allowed in a phone number.
var phonePattern = regexp.MustCompile(`^[\d+\-\s()]*$`)

var registerOnce sync.Once

// validate returns the validator engine that gin uses for binding, with the custom rules of this
// service registered.
func validate() *validator.Validate {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		panic("gin binding does not use go-playground/validator")
	}
	registerOnce.Do(func() {
		v.RegisterTagNameFunc(jsonFieldName)
		if err := v.RegisterValidation("phone", validatePhone); err != nil {
			panic(err)
		}
	})
	return v
}

// validatePhone accepts between 5 and 30 digits, '+', '-', whitespace and parentheses.
func validatePhone(fl validator.FieldLevel) bool {
	phone := fl.Field().String()
	length := utf8.RuneCountInString(phone)
	return length >= 5 && length <= 30 && phonePattern.MatchString(phone)
}

// jsonFieldName makes validation errors refer to fields by their JSON name.
func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// validatePatch applies the rules of ContactCreate to the fields present in a patch.
func validatePatch(patch model.ContactPatch) error {
	v := validate()
	rules := []struct {
		name  string
		field model.Optional[string]
		tag   string
	}{
		{"first_name", patch.FirstName, "required"},
		{"last_name", patch.LastName, "required"},
		{"email", patch.Email, "required,email"},
		{"phone", patch.Phone, "required,phone"},
	}
	for _, rule := range rules {
		if !rule.field.Set {
			continue
		}
		if rule.field.Null {
			return fmt.Errorf("%s must not be null", rule.name)
		}
		if err := v.Var(rule.field.Value, rule.tag); err != nil {
			return fmt.Errorf("invalid %s", rule.name)
		}
	}
	if patch.BirthDate.Set && patch.BirthDate.Null {
		return errors.New("birth_date must not be null")
	}
	return nil
}

// bindingMessage turns an error of ShouldBindJSON into a message for the client.
func bindingMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fieldError := validationErrors[0]
		if fieldError.Tag() == "required" {
			return fmt.Sprintf("%s is required", fieldError.Field())
		}
		return fmt.Sprintf("invalid %s", fieldError.Field())
	}
	return "invalid JSON"
}
