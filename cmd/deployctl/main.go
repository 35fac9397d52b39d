// Command deployctl prepares factory deployments offline: it converts addresses,
// calculates deployment addresses, builds the invocation a deployer signs and signs it.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/stellar/go/network"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "deployctl",
		Short: "Offline helper for factory deployments",
		Long: `deployctl prepares deployments through a factory contract without a running node.

It converts between strkeys and hex keys, calculates the address a factory assigns,
builds the invocation a delegated deployer has to sign and signs it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("network", defaultPassphrase(), "Network passphrase")

	root.AddCommand(
		newStrkeyCmd(),
		newAddressCmd(),
		newInvocationCmd(),
		newSignCmd(),
	)
	return root
}

func defaultPassphrase() string {
	if p := os.Getenv("NETWORK_PASSPHRASE"); p != "" {
		return p
	}
	return network.TestNetworkPassphrase
}

func networkPassphrase(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("network")
	return p
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
