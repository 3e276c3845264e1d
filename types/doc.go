// Package types defines the shared wire and domain types for blockbench:
// the error taxonomy, observable UI elements, and action request bodies.
package types
