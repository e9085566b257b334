// Package config handles loading and validating the Galaxie bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GALAXIE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - MQTT passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/galaxie.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Galaxie.BaseURL)
package config
