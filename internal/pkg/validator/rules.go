package validator

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

var (
	// v10's e164 tag allows a leading zero and wants seven digits or more.
	reE164    = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	reOTPCode = regexp.MustCompile(`^\d{6}$`)

	// plain backs the stock tags the identity rule is composed from.
	plain = validator.New()
)

// IsE164 reports whether s is an E.164 phone number such as +14155550100.
func IsE164(s string) bool {
	return reE164.MatchString(s)
}

// IsEmail reports whether s passes the validator email tag. Display-name
// forms such as "Bob <bob@example.com>" do not.
func IsEmail(s string) bool {
	return plain.Var(s, "email") == nil
}

// IsIdentity reports whether s is an E.164 phone number or an email address.
func IsIdentity(s string) bool {
	return IsE164(s) || IsEmail(s)
}

// IsOTPCode reports whether s is exactly six ASCII digits.
func IsOTPCode(s string) bool {
	return reOTPCode.MatchString(s)
}

type stringRule struct {
	tag  string
	msg  string
	test func(string) bool
}

var rules = []stringRule{
	{tag: "identity", msg: "{0} must be an E.164 phone number or an email address", test: IsIdentity},
	{tag: "otp", msg: "{0} must be a 6 digit code", test: IsOTPCode},
}

func registerRules(v *validator.Validate, trans ut.Translator) error {
	for _, rule := range rules {
		if err := v.RegisterValidation(rule.tag, func(fl validator.FieldLevel) bool {
			s, ok := fl.Field().Interface().(string)
			return ok && rule.test(s)
		}); err != nil {
			return err
		}

		register := func(t ut.Translator) error { return t.Add(rule.tag, rule.msg, false) }
		if err := v.RegisterTranslation(rule.tag, trans, register, translateField); err != nil {
			return err
		}
	}
	return nil
}

func translateField(t ut.Translator, fe validator.FieldError) string {
	msg, err := t.T(fe.Tag(), fe.Field())
	if err != nil {
		return fe.Field() + " is invalid"
	}
	return msg
}
