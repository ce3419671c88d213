// =============================================================================
// Statement Normalizer - Main Entry Point
// =============================================================================
//
// USAGE:
//   normalizer process       - Import every statement in the input directory
//   normalizer import FILE   - Import a single statement
//   normalizer preview FILE  - Show how a statement is read and detected
//   normalizer summary FILE  - Print totals for a ledger
//   normalizer validate      - Validate configuration files without importing
//   normalizer version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : readers, adapters, ledger model, validation and writers
//   - pkg/       : shared file handling utilities
//   - configs/   : institution configurations (YAML or TOML)
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/statement-normalizer/cmd"
)

func main() {
	cmd.Execute()
}
