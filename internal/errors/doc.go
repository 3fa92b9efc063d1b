// Package errors provides coded, actionable errors for configuration and
// the command line.
//
// Every error has a code registered in this package (e.g. "C003") that
// maps to a category, a short message and a longer explanation. Call sites
// add what they know: the offending configuration key, a suggestion, the
// underlying error.
//
//	err := errors.New("C003").
//	    WithKey("auth.jwt_secret").
//	    WithSuggestion("Set ISORENDER_AUTH_JWT_SECRET or disable auth")
//
//	fmt.Print(err.Format())
//	// ERROR C003: JWT secret is missing
//	//
//	//   auth.jwt_secret
//	//
//	//   Loaders receive the user's token only when it can be verified.
//	//
//	//   Hint: Set ISORENDER_AUTH_JWT_SECRET or disable auth
//
// Categories:
//   - config: invalid or unreadable configuration
//   - cli: command failures
//   - runtime: failures of a running server
package errors
