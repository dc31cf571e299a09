package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var keyDescription string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage stored provider API keys",
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys with masked values",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openStorage()
		if err != nil {
			return err
		}
		defer application.Close()

		entries, err := application.KVService.List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE\tDESCRIPTION")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Key, e.Masked, e.Description)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		missing, err := application.KVService.Missing(cmd.Context())
		if err != nil {
			return err
		}
		for _, key := range missing {
			fmt.Printf("not stored: %s (environment or config may still provide it)\n", key)
		}
		return nil
	},
}

var keysSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Store a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openStorage()
		if err != nil {
			return err
		}
		defer application.Close()
		return application.KVService.Set(cmd.Context(), args[0], args[1], keyDescription)
	},
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Delete a stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openStorage()
		if err != nil {
			return err
		}
		defer application.Close()
		return application.KVService.Delete(cmd.Context(), args[0])
	},
}

func init() {
	keysSetCmd.Flags().StringVarP(&keyDescription, "description", "d", "", "Description for the key")
	keysCmd.AddCommand(keysListCmd, keysSetCmd, keysDeleteCmd)
}
