package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/medreza/honcho-benefit-service/pkg/token"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "qrtoken",
		Short:         "Generate and inspect merchant QR access codes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("scheme", token.DefaultScheme, "URI scheme of the code")

	rootCmd.AddCommand(encodeCmd(out))
	rootCmd.AddCommand(decodeCmd(out))
	rootCmd.SetOut(out)
	return rootCmd
}

func encodeCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print a fresh code for a merchant",
		RunE: func(cmd *cobra.Command, args []string) error {
			scheme, _ := cmd.Flags().GetString("scheme")
			merchantID, _ := cmd.Flags().GetString("merchant")
			benefitID, _ := cmd.Flags().GetString("benefit")

			raw, err := token.NewCodec(scheme).Encode(merchantID, benefitID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, raw)
			return nil
		},
	}

	cmd.Flags().StringP("merchant", "m", "", "Merchant id")
	cmd.Flags().StringP("benefit", "b", "", "Benefit id (optional)")
	_ = cmd.MarkFlagRequired("merchant")

	return cmd
}

func decodeCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "decode [code]",
		Short: "Check a scanned code and print its contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scheme, _ := cmd.Flags().GetString("scheme")

			claims, err := token.NewCodec(scheme).Decode(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "merchant:  %s\n", claims.MerchantID)
			if claims.BenefitID != "" {
				fmt.Fprintf(out, "benefit:   %s\n", claims.BenefitID)
			}
			fmt.Fprintf(out, "issued at: %s\n", claims.IssuedAt.UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "expires:   %s\n", claims.IssuedAt.Add(token.TTL).UTC().Format(time.RFC3339))
			return nil
		},
	}
}
