// Package args holds the positional argument checks of sentinelctl. On a
// mismatch the usage is printed before the error.
package args

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/require"
)

func usageError(cmd *cobra.Command, format string, a ...any) error {
	_ = cmd.Help()
	fmt.Fprintln(cmd.OutOrStdout())

	return fmt.Errorf(format, a...)
}

func NoArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}

	return usageError(cmd, "unknown command %q for %q", args[0], cmd.CommandPath())
}

func ExactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == n {
			return nil
		}

		return usageError(cmd, "accepts %d arg(s), received %d", n, len(args))
	}
}

func MinimumNArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) >= n {
			return nil
		}

		return usageError(cmd, "requires at least %d arg(s), only received %d", n, len(args))
	}
}

// IDs accepts one or more attack or alert ids.
func IDs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return usageError(cmd, "requires at least one id")
	}

	for _, a := range args {
		if _, err := require.ID(a); err != nil {
			return usageError(cmd, "%w", err)
		}
	}

	return nil
}
