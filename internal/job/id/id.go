// Package id provides unique identifier generation for jobs.
package id

import "github.com/google/uuid"

// Length is the number of UUID characters kept for a job ID.
// Short IDs keep output filenames readable while staying unique enough
// for a single service instance.
const Length = 8

// Generate creates a new job ID from the leading characters of a random UUID.
// Example: "a1b2c3d4"
func Generate() string {
	return uuid.NewString()[:Length]
}
