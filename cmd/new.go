package cmd

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/encodeous/rayon/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a node configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			_ = cmd.Usage()
			return
		}
		name := args[0]
		err := state.NameValidator(name)
		if err != nil {
			fmt.Printf("Invalid name: %s\n", name)
			os.Exit(-1)
		}

		nodeCfg := state.NodeCfg{
			Id: name,
			Interfaces: []state.InterfaceCfg{
				{
					Name:       "eth0",
					Addr:       netip.MustParseAddr("10.1.1.254"),
					Bind:       netip.MustParseAddrPort("127.0.0.1:23001"),
					Neighbours: []netip.AddrPort{netip.MustParseAddrPort("127.0.0.1:23002")},
				},
			},
		}

		ncfg, err := yaml.Marshal(&nodeCfg)
		if err != nil {
			panic(err)
		}

		outPath := cmd.Flag("output").Value.String()
		err = os.WriteFile(outPath, ncfg, 0700)
		if err != nil {
			panic(err)
		}
		fmt.Printf("Wrote %s. Edit the interfaces to match your topology.\n", outPath)
	},
}

func init() {
	rootCmd.AddCommand(newCmd)

	newCmd.Flags().StringP("output", "o", "node.yaml", "Output path for the node config")
}
