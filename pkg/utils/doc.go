// Package utils provides vector math and concurrency primitives shared by
// the fusion and topology engines.
package utils
