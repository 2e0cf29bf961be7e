// Package config loads tool configuration from a YAML file with SFMC_*
// environment overrides. Environment values win over file values so
// credentials can stay out of checked-in config.
package config
