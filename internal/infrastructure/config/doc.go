// Package config handles loading and validating the Android TV bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with ATVBRIDGE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Secrets (MQTT password, InfluxDB token, JWT secret) should come from the
// environment. The binary loads an optional .env file before calling Load.
//
// Usage:
//
//	cfg, err := config.Load("configs/androidtv.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.GetPollInterval())
package config
