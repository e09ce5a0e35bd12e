// Package config loads the realtime client configuration from YAML.
//
// Values may reference environment variables as ${VAR}. LoadAndValidate is
// the usual entry point; the conversion helpers build the settings each
// component takes.
package config
