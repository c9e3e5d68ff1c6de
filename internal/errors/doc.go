// Package errors provides structured, coded errors for deeplink.
//
// Every error carries a unique code (e.g., "E101") that maps to a short
// message, a longer explanation and, where one exists, a suggested fix.
// Errors may name the route and parameter they concern.
//
// # Error Categories
//
//   - config: missing or malformed synchronization configuration (fatal at activation)
//   - sync: failures while applying URL values to a view
//   - navigation: navigations rejected by the host router
//   - protocol: malformed messages from a browser session
//
// # Usage
//
//	err := errors.New(errors.CodeInvalidDeclaration).
//	    WithRoute("/users/:id").
//	    WithParam("id").
//	    WithSuggestion(`use type "number"`)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E102: Invalid parameter declaration
//	//
//	//   route /users/:id, param id
//	//
//	//   Every declaration needs a non-empty, unique name and a type of
//	//   string, number or json.
//	//
//	//   Hint: use type "number"
package errors
