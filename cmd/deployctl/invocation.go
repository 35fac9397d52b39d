package main

import (
	"fmt"

	"deployer/internal/address"
	"deployer/internal/api"
	"deployer/internal/debug"
	"deployer/internal/factory"
	"deployer/internal/host"
	"deployer/internal/models"

	"github.com/spf13/cobra"
)

func newInvocationCmd() *cobra.Command {
	var (
		factoryID string
		explain   bool
		body      models.DeployRequest
	)

	cmd := &cobra.Command{
		Use:   "invocation",
		Short: "Build the invocation a deployer signs for a deployment",
		Long: `Prints the base64 XDR invocation tree a delegated deployer has to sign, together
with the address the deployment will claim. The bytes are the same the
POST /factories/{id}/invocation endpoint returns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			factoryAddr, err := host.ParseAddress(factoryID)
			if err != nil {
				return fmt.Errorf("factory: %w", err)
			}
			req, _, err := api.ParseDeployRequest(body)
			if err != nil {
				return err
			}

			deriver := address.NewDeriver(networkPassphrase(cmd))
			inv, err := factory.DeployInvocation(deriver, factoryAddr, req)
			if err != nil {
				return err
			}
			encoded, err := api.EncodeInvocation(inv)
			if err != nil {
				return err
			}

			if err := printJSON(cmd, models.InvocationResponse{
				Invocation: encoded,
				Address:    deriver.Derive(factoryAddr, req.Deployer, req.Salt).String(),
			}); err != nil {
				return err
			}

			if explain {
				tree, err := debug.FormatInvocation(inv)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tree)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&factoryID, "factory", "", "Factory contract address (C...)")
	cmd.Flags().StringVar(&body.Deployer, "deployer", "", "Deployer address (G... or C...)")
	cmd.Flags().StringVar(&body.WasmHash, "wasm-hash", "", "Hash of the code to deploy, hex")
	cmd.Flags().StringVar(&body.Salt, "salt", "", "Salt, 32 bytes hex")
	cmd.Flags().StringVar(&body.InitFn, "init-fn", "", "Initialization function")
	cmd.Flags().StringArrayVar(&body.InitArgs, "arg", nil, "Initialization argument as base64 XDR ScVal (repeatable)")
	cmd.Flags().BoolVar(&explain, "explain", false, "Also print the invocation tree as JSON")
	for _, name := range []string{"factory", "deployer", "wasm-hash", "salt", "init-fn"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
