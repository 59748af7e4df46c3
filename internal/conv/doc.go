// Package conv provides checked integer conversions for the length fields
// of sealed parameter blobs.
package conv
