// Package validator validates request and domain structs.
//
// Usecases depend on the Validator interface. V10Validator is the
// go-playground/validator implementation with English messages and the
// identity and otp rules registered.
package validator
