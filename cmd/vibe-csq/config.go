package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vibe-csq configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.vibe-csq.yaml.",
		Example: `  vibe-csq config                                      # show all config
  vibe-csq config set sources.clinvar ~/data/clinvar.duckdb  # enable ClinVar
  vibe-csq config set annotate.source-timeout 10s
  vibe-csq config get genes.genes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, args[0], args[1])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, args[0])
		},
	})
	return cmd
}

// fileConfig reads the config file alone, without flag defaults or
// environment overrides, so writing it back stores only what was set.
func fileConfig() (*viper.Viper, string, error) {
	file := viper.ConfigFileUsed()
	if file == "" {
		file = cfgFile
	}
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		file = filepath.Join(home, configName+".yaml")
	}

	v := viper.New()
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	if _, err := os.Stat(file); err != nil {
		return v, file, nil
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return v, file, nil
}

func runConfigShow(cmd *cobra.Command) error {
	v, file, err := fileConfig()
	if err != nil {
		return err
	}
	settings := v.AllSettings()
	if len(settings) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "# No configuration set. Config file: %s\n", file)
		return nil
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func runConfigSet(cmd *cobra.Command, key, value string) error {
	v, file, err := fileConfig()
	if err != nil {
		return err
	}

	key = strings.ToLower(key)
	switch value {
	case "true", "yes", "on":
		v.Set(key, true)
	case "false", "no", "off":
		v.Set(key, false)
	default:
		v.Set(key, value)
	}

	if err := v.WriteConfigAs(file); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, file)
	return nil
}

// runConfigGet reports the effective value, flag defaults included.
func runConfigGet(cmd *cobra.Command, key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), val)
	return nil
}
