// Package errors provides structured, coded errors for the urlstate CLI,
// configuration loader, and playground server.
//
// The core packages (params, pathresolve, querystring, encoding, history,
// urlparam) never return these: malformed URLs and forbidden keys are
// neutralized silently. Errors here are for inputs a user typed or a
// client sent.
//
// # Error Categories
//
//   - input: CLI and HTTP input that could not be read (bad JSON, bad base64)
//   - config: configuration file errors
//   - protocol: WebSocket messages that could not be understood
//
// # Usage
//
//	err := errors.New("E101").
//	    WithDetail("got a JSON array").
//	    WithSuggestion(`Pass an object, e.g. {"q":"go"}`)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E101: JSON input is not an object
//	//
//	//   got a JSON array
//	//
//	//   Hint: Pass an object, e.g. {"q":"go"}
package errors
