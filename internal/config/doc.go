// Package config provides configuration management for mpxreport.
//
// Configuration is assembled from the following sources, later ones winning:
//
//	1. Built-in defaults (Default)
//	2. A YAML file (path argument, MPX_CONFIG, or ./config.yaml)
//	3. Environment variables prefixed with MPX_
//
// Environment variables follow the struct layout:
//
//	MPX_SOURCE_LOCATION=https://.../latest.csv
//	MPX_REPORT_OUTPUT_DIR=/var/lib/mpxreport
//	MPX_REPORT_FORMATS=xlsx,csv
//	MPX_LOGGING_LEVEL=debug
//	MPX_SERVER_ADDRESS=:8080
//
// Age categories and symptom substitution tables are fixed business rules
// and are not part of the configuration.
package config
