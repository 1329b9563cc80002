// Package config loads and persists the tool configuration.
//
// The config is a YAML file under the user's home directory covering the
// data root, the metadata store location, log level, the port allocation
// range, and per-engine binary directories. Values are layered: built-in
// defaults, then the file, then DBNEST_ environment variables.
package config
