package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/insiderlens/internal/common"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		common.LoadVersionFromFile()
		if versionJSON {
			return json.NewEncoder(os.Stdout).Encode(common.GetVersionInfo())
		}
		fmt.Printf("InsiderLens version %s\n", common.GetFullVersion())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print as JSON")
}
