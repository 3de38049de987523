// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing sessions and events. Not intended for
// production usage.
package testutil
