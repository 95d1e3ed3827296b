package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var nodeConfigPath = "node.yaml"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rayon",
	Short: "Rayon Distance-Vector Routing CLI",
	Long: `Rayon is a minimal distance-vector routing daemon.
Each node advertises its route table to neighbours, merges what it hears back,
and forwards traffic along the shortest known paths.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&nodeConfigPath, "config", "c", nodeConfigPath, "node config")
}
