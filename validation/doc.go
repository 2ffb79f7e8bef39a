// Package validation implements the credential checks run before any call to
// the identity service.
//
// Every function is pure and returns field-tagged *autherr.Error values; none
// of them panic or perform I/O. Password composition is expressed as an
// ordered list of [PasswordRule] values built from a [PasswordPolicy].
package validation
