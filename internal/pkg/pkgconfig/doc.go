// Package pkgconfig provides a small abstraction for reading configuration values.
//
// Values come from a YAML file read by Viper, optionally overridden by
// environment variables. Business code depends on the Config interface so it
// stays easy to test and does not care where values come from.
package pkgconfig
