package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ballee/dbsync/internal/sync"
)

const version = "0.3.0"

// Exit codes: 0 success (including a safe dry run), 1 fatal
// configuration/identity/connection error with no destructive action
// taken, 2 partial success (some tables failed restore).
const (
	exitOK      = 0
	exitFatal   = 1
	exitPartial = 2
)

var rootCmd = &cobra.Command{
	Use:           "dbsync",
	Short:         "Copy a relational dataset from a protected environment into a less-protected one",
	Long: `dbsync copies data from a protected source environment (production or
staging) into an unprotected target (staging or local), behind a
two-phase confirmation gate that can never write to production.

Without --confirm the command is a dry run: it verifies connectivity and
target identity, touches no data, and exits 0.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree and maps errors onto exit codes.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, sync.ErrPartialRestore) {
			return exitPartial
		}
		return exitFatal
	}
	return exitOK
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the dbsync version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dbsync version %s\n", version)
		},
	})
}
