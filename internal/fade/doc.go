// Package fade drives the ambient track of the contact section.
// A Controller turns a visibility signal into a stepped volume fade,
// keeping at most one fade task scheduled at any time.
package fade
