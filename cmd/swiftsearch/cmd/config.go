package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/swiftsearch/configs"
	"github.com/Aman-CERP/swiftsearch/internal/config"
	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
	"github.com/Aman-CERP/swiftsearch/internal/fsutil"
	"github.com/Aman-CERP/swiftsearch/internal/userconfig"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Read and edit the service configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/swiftsearch/config.yaml)
  3. The file given with --config
  4. Environment variables (SWIFTSEARCH_*)

'config set' edits the user config file and keeps a backup of the
previous version.`,
		Example: `  # Show the effective configuration
  swiftsearch config show

  # Read one value
  swiftsearch config get engine.backend

  # Switch the engine backend
  swiftsearch config set engine.backend sqlite`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigUserCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented user config file",
		Long: `Write the commented configuration template to the user config path.
An existing file is kept unless --force is given; it is backed up first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.GetUserConfigPath()
			if fsutil.Exists(path) {
				if !force {
					return amerrors.New(amerrors.ErrCodeInvalidInput, "config file already exists: "+path, nil).
						WithSuggestion("Use --force to overwrite it. The old file is backed up.")
				}
				if _, err := config.Backup(path); err != nil {
					return err
				}
			}
			if err := fsutil.WriteFileAtomic(path, []byte(configs.UserConfigTemplate), 0o644); err != nil {
				return amerrors.New(amerrors.ErrCodeFilePermission, "failed to write "+path, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one effective configuration value",
		Long:  `Print one effective configuration value. Keys are dotted YAML paths, e.g. index.minimum_disk_space.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tree, err := toTree(cfg)
			if err != nil {
				return err
			}
			v, ok := lookup(tree, args[0])
			if !ok {
				return unknownKey(args[0], tree)
			}
			if m, isMap := v.(map[string]any); isMap {
				data, err := yaml.Marshal(m)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in the user config file",
		Long: `Set a value in the user config file. The value is parsed as YAML, so
numbers and booleans keep their type. The result must pass validation.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.GetUserConfigPath()
			}
			if err := setConfigValue(path, args[0], args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", args[0], path)
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func newConfigUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user <user-id>",
		Short: "Print a user's index record",
		Long: `Print the per-user index record (rotation id, language, version and index
version) from the shared user config document. Prints null for a user
without a record. The document is never modified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := userconfig.New(cfg.Paths.UserConfigFile, cfg.Index.Version, nil)
			rec, err := store.Peek(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}

// setConfigValue writes key=value into the YAML file at path, keeping the
// rest of the file.
func setConfigValue(path, key, value string) error {
	defaults, err := toTree(config.NewConfig())
	if err != nil {
		return err
	}
	if old, ok := lookup(defaults, key); !ok {
		return unknownKey(key, defaults)
	} else if _, isMap := old.(map[string]any); isMap {
		return amerrors.New(amerrors.ErrCodeInvalidInput, key+" is a section, set one of its keys", nil)
	}

	tree := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return amerrors.New(amerrors.ErrCodeConfigInvalid, "failed to parse "+path, err)
		}
		if tree == nil {
			tree = map[string]any{}
		}
	case !os.IsNotExist(err):
		return amerrors.New(amerrors.ErrCodeFilePermission, "failed to read "+path, err)
	}

	var parsed any
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}
	assign(tree, key, parsed)

	out, err := yaml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if _, err := config.Parse(out); err != nil {
		return amerrors.New(amerrors.ErrCodeConfigInvalid, fmt.Sprintf("invalid value for %s", key), err)
	}

	if _, err := config.Backup(path); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, out, 0o644)
}

// toTree renders v as nested maps keyed by YAML names.
func toTree(v any) (map[string]any, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	tree := map[string]any{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to read config tree: %w", err)
	}
	return tree, nil
}

func lookup(tree map[string]any, key string) (any, bool) {
	var cur any = tree
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func assign(tree map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	cur := tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func unknownKey(key string, tree map[string]any) error {
	sections := make([]string, 0, len(tree))
	for k := range tree {
		sections = append(sections, k)
	}
	sort.Strings(sections)
	return amerrors.New(amerrors.ErrCodeInvalidInput, "unknown config key: "+key, nil).
		WithSuggestion("Top-level sections: " + strings.Join(sections, ", ") + ".")
}
