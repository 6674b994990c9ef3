// Package commands implements the gatectl command line.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the gatectl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gatectl",
		Short: "gatectl exercises an iiifgate deployment from the command line",
		Long: `gatectl plays the image server's delegate hook against a running gate and
issues or inspects tile tokens with the gate's key material.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newAuthorizeCmd())
	root.AddCommand(newTokenCmd())
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
