package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	jsonpool "github.com/ajitpratap0/nebula-gocardless/pkg/json"

	// Register connectors
	_ "github.com/ajitpratap0/nebula-gocardless/pkg/connector/destinations/jsonl"
	_ "github.com/ajitpratap0/nebula-gocardless/pkg/connector/sources/gocardless"
)

var version = "1.0.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gocardless",
		Short: "Incremental extraction of GoCardless payments data",
		Long: `gocardless reads payments, payment events and related resources from the
GoCardless API and writes them as JSON lines, keeping a per-stream cursor so
each run only fetches what changed since the last one.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newVersionCmd(),
		newSpecCmd(),
		newCheckCmd(),
		newDiscoverCmd(),
		newReadCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "gocardless v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := jsonpool.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
