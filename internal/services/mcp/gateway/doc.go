// Package gateway forwards one tool invocation to the Cams Biometrics device
// API and normalizes the outcome.
//
// Every call is a single authenticated POST with its own HTTP client and
// deadline. Failures never escape as Go errors: they are logged and folded
// into a Result with no data and a typed *Error, so handlers branch on the
// failure kind instead of unwinding.
package gateway
