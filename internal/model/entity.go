// Package model holds the records persisted by the repositories. Structs
// mirror table rows; JSON tags describe the HTTP and cache representation.
package model

// Entity is the capability every repository-managed record has: an integer
// identifier assigned by the database.
type Entity interface {
	GetID() int64
}
