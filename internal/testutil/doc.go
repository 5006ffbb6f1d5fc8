// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing session states, scripting model
// replies and serving tools. They are not intended for production usage.
package testutil
