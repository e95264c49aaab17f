// Package config loads naming client configuration from YAML files and
// environment variables.
//
// Configuration is resolved in layers: a YAML file provides the base, a
// .env file (if present) is loaded into the process environment, and
// environment variables override both. The result is unmarshaled into the
// caller's struct via mapstructure tags.
//
//	var cfg naming.Config
//	err := config.Load("nacos-serving", &cfg)
package config
