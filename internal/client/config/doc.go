// Package config loads settings for the memorelay command-line client:
// defaults, then an optional JSON file (-c/-config), then flags.
package config
