package config

import (
	"fmt"
)

// parameters for the metadata database holding transfers, requests, and
// storage locations (sqlite for a single node, postgres for production)
type databaseConfig struct {
	// database kind: "sqlite" (default) or "postgres"
	Type string `json:"type" yaml:"type"`
	// sqlite database file (sqlite only)
	Path string `json:"path" yaml:"path"`
	// connection parameters (postgres only)
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Name     string `json:"name" yaml:"name"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode"`
}

// DSN returns the postgres connection string for the database.
func (db databaseConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		db.Host, db.Port, db.User, db.Password, db.Name)
	if db.SSLMode != "" {
		dsn += fmt.Sprintf(" sslmode=%s", db.SSLMode)
	}
	return dsn
}

func validateDatabaseParameters(db databaseConfig) error {
	switch db.Type {
	case "", "sqlite":
		if db.Path == "" {
			return fmt.Errorf("No database path was given for the sqlite database")
		}
	case "postgres":
		if db.Host == "" || db.Name == "" || db.User == "" {
			return fmt.Errorf("The postgres database needs a host, a name, and a user")
		}
		if db.Port < 0 || db.Port > 65535 {
			return fmt.Errorf("Invalid database port: %d", db.Port)
		}
	default:
		return fmt.Errorf("Unknown database type: %s", db.Type)
	}
	return nil
}
