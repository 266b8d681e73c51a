// Package config loads runtime configuration for the whattodo client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file (see parseFile) selected via flags: -c or -config.
//     Files ending in .yaml or .yml are read as YAML, anything else as JSON.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string          address:port of the remote authority gRPC endpoint
//	-i int             online status check interval (seconds)
//	-d string          path of the local SQLite database
//	-l string          client log file
//	-r int             periodic reconcile interval (seconds)
//	-o string          origin the routing layer fronts
//	-listen string     listen address of the routing layer
//	-concurrency int   entities reconciled in parallel
//	-bypass list       comma separated globs that skip the cache
//	-precache list     comma separated paths fetched on activation
//
// # File schema
//
// Durations use timex.Duration, so values can be either strings like "3s"
// or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "database_path": "whattodo.db",
//	  "reconcile_interval": "30s",
//	  "bypass_patterns": ["/api/**"]
//	}
//
// Note: This package does not read environment variables directly; use the
// config file or flags to configure values.
package config
