package common

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Tie configuration struct
// --------------------------------------------------------------------------

// TieConfig holds everything needed to tie a store from the command line.
type TieConfig struct {
	// Name of the hash parameter the store is bound to
	Name string
	// Backend kind, e.g. "db/bolt"
	Backend string
	// File (or directory for db/pebble) of the store
	File string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *TieConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		if value == "" {
			value = "-"
		}
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Tied Store")
	addField("Parameter", c.Name)
	addField("Backend", c.Backend)
	addField("File", c.File)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
