package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/tKV/lib/common"
	"github.com/ValentinKolb/tKV/lib/tie"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// ExitError carries a non-zero exit status out of a command
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupTieFlags adds the flags that select the store to tie
func SetupTieFlags(cmd *cobra.Command, defaultName string) {
	key := "backend"
	cmd.PersistentFlags().String(key, string(tie.DefaultKind), WrapString("backend kind, one of "+strings.Join(tie.KindNames(), ", ")))

	key = "file"
	cmd.PersistentFlags().String(key, "", WrapString("store file to tie (a directory for db/pebble)"))

	key = "name"
	cmd.PersistentFlags().String(key, defaultName, WrapString("name of the hash parameter the store is tied to"))
}

// InitConfig initializes configuration from .env files and environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("tkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetTieConfig reads the tie configuration from viper
func GetTieConfig() *common.TieConfig {
	return &common.TieConfig{
		Name:     viper.GetString("name"),
		Backend:  viper.GetString("backend"),
		File:     viper.GetString("file"),
		LogLevel: viper.GetString("log-level"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// Setup binds the flags of cmd, initializes the loggers and returns the tie configuration
func Setup(cmd *cobra.Command) (*common.TieConfig, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	conf := GetTieConfig()
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return nil, err
	}
	return conf, nil
}
