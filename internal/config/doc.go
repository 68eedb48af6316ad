// Package config loads config.yaml over built-in defaults and reads
// credentials from the environment, loading a .env file first when one
// exists.
package config
