// Package render prints viewer data as terminal tables.
package render
