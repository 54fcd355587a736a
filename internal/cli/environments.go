package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ballee/dbsync/internal/envs"
)

var environmentsCmd = &cobra.Command{
	Use:     "environments",
	Aliases: []string{"envs"},
	Short:   "List known environments and their protection level",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("%-12s %-24s %-16s %s\n", "ID", "HOST", "DATABASE", "PROTECTION")
		for _, id := range envs.IDs() {
			e, _ := envs.Lookup(id)
			fmt.Printf("%-12s %-24s %-16s %s\n", e.ID, e.Addr(), e.Database, e.Protection)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(environmentsCmd)
}
