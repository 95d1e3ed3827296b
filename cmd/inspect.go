package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/rayon/core"
	"github.com/encodeous/rayon/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect",
	Aliases: []string{"i"},
	Short:   "Inspects the route table of a running rayon node",
	Run: func(cmd *cobra.Command, args []string) {
		ctlPath := state.DefaultCtlPath
		if file, err := os.ReadFile(nodeConfigPath); err == nil {
			var cfg state.NodeCfg
			if yaml.Unmarshal(file, &cfg) == nil && cfg.CtlPath != "" {
				ctlPath = cfg.CtlPath
			}
		}
		result, err := core.IPCGet(ctlPath)
		if err != nil {
			fmt.Println("Error:", err.Error())
			return
		}
		fmt.Print(result)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
