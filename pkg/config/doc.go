/*
Package config loads and validates the console's configuration.

Defaults cover every knob; a YAML file and a handful of environment
variables (PYLOFT_API_ORIGIN, PYLOFT_DATA_DIR) layer on top. A missing
config file is not an error.

	cfg, err := config.Load("")        // defaults + env
	cfg, err = config.Load("cfg.yaml") // defaults + env + file

The timing knobs (deploy poll interval and tick budgets, log poll
interval, buffer cap, saved-label TTL) are deliberately configurable so
tests can run them at millisecond scale.
*/
package config
