package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/remiblancher/ocspkit/configs"
)

// configCmd groups configuration file management.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage responder configuration files",
}

// configInitCmd writes the embedded starter templates to disk.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write starter configuration files",
	Long: `Write starter configuration files for the HTTP responder.

The templates document every setting with its environment variable and
default. Edit ca_dir before starting the responder.

Examples:
  # Write responder.yaml in the current directory
  ocspkit config init

  # Write both the responder and the PKCS#11 HSM template
  ocspkit config init --out responder.yaml --hsm-out hsm.yaml`,
	RunE: runConfigInit,
}

var (
	configInitOut    string
	configInitHSMOut string
	configInitForce  bool
)

func init() {
	configInitCmd.Flags().StringVar(&configInitOut, "out", "responder.yaml", "Output path for the responder configuration")
	configInitCmd.Flags().StringVar(&configInitHSMOut, "hsm-out", "", "Also write a PKCS#11 HSM template to this path")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite existing files")

	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := writeTemplate(configInitOut, configs.Responder); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", configInitOut)

	if configInitHSMOut != "" {
		if err := writeTemplate(configInitHSMOut, configs.HSM); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", configInitHSMOut)
	}

	fmt.Printf("\nEdit ca_dir, then start the responder:\n")
	fmt.Printf("  ocspkit serve --config %s\n", configInitOut)
	return nil
}

func writeTemplate(path string, data []byte) error {
	if !configInitForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
