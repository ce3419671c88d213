// =============================================================================
// Statement Normalizer - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   normalizer version
//
// OUTPUT:
//   Statement Normalizer
//   Version:    1.0.0
//   Build Date: 2024-01-01
//   Go Version: go1.24.0
//   Adapters:   generic, ibi, ibi-securities
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/statement-normalizer/internal/adapter"
)

// These variables are set at build time using ldflags:
//   go build -ldflags "-X 'github.com/ginjaninja78/statement-normalizer/cmd.Version=1.0.0'"
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Long:  `Display the application version, build date, Go runtime version and the available adapters.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Statement Normalizer")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Build Date: %s\n", BuildDate)
		fmt.Printf("Go Version: %s\n", runtime.Version())
		fmt.Printf("Adapters:   %s\n", strings.Join(adapter.Variants(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
