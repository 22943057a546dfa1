// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver error strings.
package repository

import "errors"

// ErrNotFound is returned when a requested entity (user, product, visit,
// session) does not exist. Handlers translate it into an HTTP 404, except
// for auth lookups where it collapses into the uniform 401.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when registration hits the unique email
// constraint. It is a reported, recoverable condition and maps to HTTP 409.
var ErrEmailExists = errors.New("email already exists")
