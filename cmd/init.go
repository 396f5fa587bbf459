package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/hostkb/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize hostkb configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose the language model, embedding and search backends and generates a .hostkb.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
