// Package database provides connection pool management for the Postgres archive.
//
// The gatherer stores everything in a single database: analysis fragments,
// progress marks, and run completions.
package database
