package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var propertiesCmd = &cobra.Command{
	Use:   "properties",
	Short: "Manage the property directory used by the assistant's tools",
}

var propertiesImportCmd = &cobra.Command{
	Use:   "import <file.yml>",
	Short: "Import or update properties from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.importProperties(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d properties from %s\n", n, args[0])
		return nil
	},
}

var propertiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known properties",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		props, err := a.props.List(cmd.Context(), owner)
		if err != nil {
			return err
		}
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(props)
		}
		if len(props) == 0 {
			fmt.Println("No properties found.")
			return nil
		}
		for _, p := range props {
			fmt.Printf("  #%d %s (%s) %s, sleeps %d, %.0f %s/night\n",
				p.ID, p.Name, p.OwnerID, p.City, p.MaxGuests, p.NightlyRate, p.Currency)
		}
		return nil
	},
}

func init() {
	propertiesListCmd.Flags().String("owner", "", "only list this owner's properties")
	propertiesListCmd.Flags().Bool("json", false, "output as JSON")
	propertiesCmd.AddCommand(propertiesImportCmd, propertiesListCmd)
	rootCmd.AddCommand(propertiesCmd)
}
