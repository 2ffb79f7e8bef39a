// Package autherr defines the structured error shared by every component of
// the session engine.
//
// An [Error] carries a taxonomy [Code], a user-facing message, an optional
// form field, a timestamp and a severity. Sentinel values such as
// [ErrAccountLocked] match any error with the same code through errors.Is.
// [From] folds arbitrary Go errors (context deadlines, net errors) into the
// taxonomy so raw transport failures never leak past the engine boundary.
package autherr
