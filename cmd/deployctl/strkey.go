package main

import (
	"encoding/hex"
	"fmt"

	"deployer/internal/host"

	"github.com/spf13/cobra"
	"github.com/stellar/go/strkey"
)

func newStrkeyCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "strkey <G...|C...|hex>",
		Short: "Convert between strkey addresses and hex keys",
		Long: `Decodes an account (G...) or contract (C...) address to its 32 byte key in hex,
or encodes a hex key as an address of the given --kind.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := convertStrkey(args[0], kind)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "contract", "Address kind for hex input: contract or account")
	return cmd
}

func convertStrkey(input, kind string) (string, error) {
	if addr, err := host.ParseAddress(input); err == nil {
		key := addr.Key()
		return hex.EncodeToString(key[:]), nil
	}

	raw, err := hex.DecodeString(input)
	if err != nil || len(raw) != 32 {
		return "", fmt.Errorf("%q is neither a strkey nor a 32 byte hex key", input)
	}

	var version strkey.VersionByte
	switch kind {
	case "contract":
		version = strkey.VersionByteContract
	case "account":
		version = strkey.VersionByteAccountID
	default:
		return "", fmt.Errorf("unknown kind %q", kind)
	}

	return strkey.Encode(version, raw)
}
