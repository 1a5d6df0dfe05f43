// Package inventory loads the newline-delimited list of hosts to update.
// Lines that are empty or start with '#' are ignored.
package inventory
