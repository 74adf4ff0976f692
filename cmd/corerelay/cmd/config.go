package cmd

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kestrelstream/corerelay/internal/config"
	"github.com/kestrelstream/corerelay/pkg/bytesize"
	"github.com/kestrelstream/corerelay/pkg/duration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing corerelay configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  corerelay config dump > corerelay.yaml

Configuration can be set via:
  - Config file (corerelay.yaml, /etc/corerelay, $HOME/.corerelay)
  - Environment variables (CORERELAY_PLAYER_PATH, CORERELAY_BUFFER_CAPACITY_PACKETS, etc.)
  - Command-line flags (for some options)

Environment variables use the CORERELAY_ prefix and underscores for nesting.
Example: player.path -> CORERELAY_PLAYER_PATH`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a struct to a map, formatting durations and byte sizes for
// human readability rather than dumping raw nanosecond/byte integers.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		switch v := field.Interface().(type) {
		case config.Duration:
			result[key] = duration.Format(v.Duration())
		case config.ByteSize:
			result[key] = bytesize.Format(bytesize.Size(v))
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	var cfg config.Config
	config.SetDefaultsOnConfig(&cfg)

	cfgMap := toMap(&cfg)

	yamlData, err := yaml.Marshal(cfgMap)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	var header strings.Builder
	header.WriteString("# corerelay Configuration File\n")
	header.WriteString("# ============================\n")
	header.WriteString("#\n")
	header.WriteString("# All values shown below are defaults.\n")
	header.WriteString("# Duration format: 600ms, 30s, 5m, 1h\n")
	header.WriteString("# Size format: 256KiB, 1MiB\n")
	header.WriteString("#\n")
	header.WriteString("# Environment variable overrides use the CORERELAY_ prefix:\n")
	header.WriteString("#   CORERELAY_PLAYER_PATH, CORERELAY_BUFFER_CAPACITY_PACKETS, CORERELAY_LOGGING_LEVEL, etc.\n")
	header.WriteString("#\n\n")

	fmt.Print(header.String())
	fmt.Print(string(yamlData))

	return nil
}
