package main

import (
	"fmt"

	"deployer/internal/address"
	"deployer/internal/host"
	"deployer/internal/models"

	"github.com/spf13/cobra"
)

func newAddressCmd() *cobra.Command {
	var factoryID, deployerID, saltHex string

	cmd := &cobra.Command{
		Use:   "address",
		Short: "Calculate the address a factory assigns to (deployer, salt)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			factoryAddr, err := host.ParseAddress(factoryID)
			if err != nil {
				return fmt.Errorf("factory: %w", err)
			}
			deployer, err := host.ParseAddress(deployerID)
			if err != nil {
				return fmt.Errorf("deployer: %w", err)
			}
			salt, err := host.ParseSalt(saltHex)
			if err != nil {
				return fmt.Errorf("salt: %w", err)
			}

			derived := address.NewDeriver(networkPassphrase(cmd)).Derive(factoryAddr, deployer, salt)
			return printJSON(cmd, models.AddressResponse{
				Factory:  factoryAddr.String(),
				Deployer: deployer.String(),
				Salt:     salt.String(),
				Address:  derived.String(),
			})
		},
	}

	cmd.Flags().StringVar(&factoryID, "factory", "", "Factory contract address (C...)")
	cmd.Flags().StringVar(&deployerID, "deployer", "", "Deployer address (G... or C...)")
	cmd.Flags().StringVar(&saltHex, "salt", "", "Salt, 32 bytes hex")
	_ = cmd.MarkFlagRequired("factory")
	_ = cmd.MarkFlagRequired("deployer")
	_ = cmd.MarkFlagRequired("salt")
	return cmd
}
