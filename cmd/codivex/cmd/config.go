package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codivex/codivex/internal/config"
)

// newConfigCmd creates the config command: backup and restore for the
// user config file (~/.config/codivex/config.yaml, or $XDG_CONFIG_HOME
// equivalent).
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user configuration backups",
		Long: `Manage backups of the user configuration file.

Examples:
  # Print the user config file path
  codivex config path

  # Back up the current user config
  codivex config backup

  # List available backups, newest first
  codivex config backup list

  # Restore a backup over the current user config
  codivex config restore ~/.config/codivex/config.yaml.bak.20260730-120000`,
	}

	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigBackupCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return nil
		},
	}
}

func newConfigBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the user config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigBackup(cmd)
		},
	}

	cmd.AddCommand(newConfigBackupListCmd())

	return cmd
}

func runConfigBackup(cmd *cobra.Command) error {
	backupPath, err := config.BackupUserConfig()
	if err != nil {
		return fmt.Errorf("codivex: backup user config: %w", err)
	}
	if backupPath == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "no user config file exists, nothing to back up")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "backed up user config to %s\n", backupPath)
	return nil
}

func newConfigBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List user config backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return fmt.Errorf("codivex: list user config backups: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(backups) == 0 {
				fmt.Fprintln(out, "no user config backups found")
				return nil
			}
			for _, b := range backups {
				fmt.Fprintln(out, b)
			}
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-path>",
		Short: "Restore the user config from a backup file",
		Long: `Restore the user config file from a backup produced by "config backup".

The current user config, if any, is itself backed up before being
overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RestoreUserConfig(args[0]); err != nil {
				return fmt.Errorf("codivex: restore user config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored user config from %s\n", args[0])
			return nil
		},
	}
}
