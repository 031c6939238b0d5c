// Package client implements the mova-ctl commands.
//
// A Session connects to the viewer daemon, runs one query or command, and
// prints the result as terminal tables.
package client
