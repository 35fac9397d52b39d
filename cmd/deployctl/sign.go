package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"deployer/internal/auth"
	"deployer/internal/models"

	"github.com/spf13/cobra"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/xdr"
)

func newSignCmd() *cobra.Command {
	var (
		invocation string
		nonce      int64
		expiration uint32
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign an invocation and print the credential",
		Long: `Signs a base64 XDR invocation with the secret seed in DEPLOYER_SECRET_SEED and
prints the credential in the format the deploy endpoint accepts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			seed := os.Getenv("DEPLOYER_SECRET_SEED")
			if seed == "" {
				return errors.New("DEPLOYER_SECRET_SEED is not set")
			}
			kp, err := keypair.ParseFull(seed)
			if err != nil {
				return fmt.Errorf("secret seed: %w", err)
			}

			inv, err := decodeInvocation(invocation)
			if err != nil {
				return fmt.Errorf("invocation: %w", err)
			}

			cred, err := auth.Sign(kp, networkPassphrase(cmd), inv, nonce, expiration)
			if err != nil {
				return err
			}

			return printJSON(cmd, models.CredentialRequest{
				Address:          cred.Address.String(),
				Nonce:            cred.Nonce,
				ExpirationLedger: cred.ExpirationLedger,
				Signature:        base64.StdEncoding.EncodeToString(cred.Signature),
			})
		},
	}

	cmd.Flags().StringVar(&invocation, "invocation", "", "Base64 XDR SorobanAuthorizedInvocation")
	cmd.Flags().Int64Var(&nonce, "nonce", 0, "Credential nonce")
	cmd.Flags().Uint32Var(&expiration, "expiration", 0, "Last ledger sequence the credential is valid for")
	_ = cmd.MarkFlagRequired("invocation")
	_ = cmd.MarkFlagRequired("expiration")
	return cmd
}

func decodeInvocation(encoded string) (xdr.SorobanAuthorizedInvocation, error) {
	var inv xdr.SorobanAuthorizedInvocation
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return inv, err
	}
	err = inv.UnmarshalBinary(raw)
	return inv, err
}
