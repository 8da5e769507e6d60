// Package sanitizer normalizes user input before validation and storage.
//
// Every function is idempotent: applying it twice gives the same result as
// applying it once. Invalid input is passed through in normalized form and
// left for the validator to reject.
package sanitizer
