package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// a type with service configuration parameters
type serviceConfig struct {
	// name reported by the REST service
	Name string `json:"name" yaml:"name"`
	// port on which the REST service listens
	Port int `json:"port" yaml:"port"`
	// maximum number of allowed incoming connections
	MaxConnections int `json:"max_connections" yaml:"max_connections"`
}

// a type holding the maximum number of concurrently unfinished transfers
// allowed per action (0 means "no budget configured, skip the action")
type thresholdsConfig struct {
	Staging   int `json:"staging" yaml:"staging"`
	Archiving int `json:"archiving" yaml:"archiving"`
}

// a type with the location of the transfer activity journal
type journalConfig struct {
	Path string `json:"path" yaml:"path"`
}

// global config variables
var Service serviceConfig
var Database databaseConfig
var Thresholds thresholdsConfig
var FTS ftsConfig
var Mail mailConfig
var Journal journalConfig

// This struct performs the unmarshalling from the YAML config file and then
// copies its fields to the globals above.
type configFile struct {
	Service    serviceConfig    `yaml:"service"`
	Database   databaseConfig   `yaml:"database"`
	Thresholds thresholdsConfig `yaml:"thresholds"`
	FTS        ftsConfig        `yaml:"fts"`
	Mail       mailConfig       `yaml:"mail"`
	Journal    journalConfig    `yaml:"journal"`
}

// This helper reads configuration data, returning an error indicating success
// or failure. All environment variables of the form ${ENV_VAR} are expanded.
func readConfig(bytes []byte) error {
	// Before we do anything else, expand any provided environment variables.
	bytes = []byte(os.ExpandEnv(string(bytes)))

	var conf configFile
	conf.Service.Name = "cold-storage"
	conf.Service.Port = 8080
	conf.Service.MaxConnections = 100
	conf.FTS.BringOnline = 604800
	conf.FTS.ArchiveTimeout = 86400
	conf.Mail.Port = 25
	conf.Mail.Sender = "opendata-noreply@cern.ch"
	err := yaml.Unmarshal(bytes, &conf)
	if err != nil {
		log.Printf("Couldn't parse configuration data: %s\n", err)
		return err
	}

	// copy the config data into place
	Service = conf.Service
	Database = conf.Database
	Thresholds = conf.Thresholds
	FTS = conf.FTS
	Mail = conf.Mail
	Journal = conf.Journal

	return err
}

// This helper validates the given service parameters, returning an
// error indicating success or failure.
func validateServiceParameters(params serviceConfig) error {
	if params.Port < 0 || params.Port > 65535 {
		return fmt.Errorf("Invalid port: %d (must be 0-65535)", params.Port)
	}
	if params.MaxConnections <= 0 {
		return fmt.Errorf("Invalid max_connections: %d (must be positive)",
			params.MaxConnections)
	}
	return nil
}

// This helper validates the configuration as a whole, returning an error that
// indicates success or failure.
func validateConfig() error {
	err := validateServiceParameters(Service)
	if err != nil {
		return err
	}
	err = validateDatabaseParameters(Database)
	if err != nil {
		return err
	}
	if Thresholds.Staging < 0 || Thresholds.Archiving < 0 {
		return fmt.Errorf("Transfer thresholds cannot be negative")
	}
	return nil
}

// Returns the maximum number of concurrently unfinished transfers allowed
// for the given action ("stage" or "archive"). Zero means that no budget is
// configured and the action should be skipped by the request driver.
func ActiveTransfersThreshold(action string) int {
	switch action {
	case "stage":
		return Thresholds.Staging
	case "archive":
		return Thresholds.Archiving
	}
	return 0
}

// Initializes the cold storage service configuration using the given YAML
// byte data.
func Init(yamlData []byte) error {

	// Read the configuration from our YAML data.
	err := readConfig(yamlData)
	if err != nil {
		return err
	}

	// Validate the configuration.
	err = validateConfig()
	return err
}
