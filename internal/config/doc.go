// Package config holds all configuration for the crawler service.
//
// Configuration comes from three places, in increasing precedence:
// package defaults, the optional .crawlerd YAML file, and CLI flags.
// The resulting Config struct is passed through the application by
// dependency injection; there is no global settings object.
package config
