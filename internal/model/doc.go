// Package model defines the data types shared across the crawler service.
//
// The types here are pure data: they carry no behavior beyond small
// constructors and convenience accessors, and they depend only on the
// standard library. This keeps the package importable from every layer
// (engine, storage, reports, CLI) without dependency cycles.
package model
