// Package nav gates the console's screens and table controls on the
// permission resolver.
package nav
