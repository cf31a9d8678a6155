package main

import (
	"github.com/spf13/cobra"

	"propchain/core/types"
)

func newTxCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "tx", Short: "Register and complete verified transactions"}

	var verifiers []string
	register := &cobra.Command{
		Use:   "register",
		Short: "Register a transaction with its verifier set",
		RunE: func(cmd *cobra.Command, args []string) error {
			set := make([]types.Principal, 0, len(verifiers))
			for _, raw := range verifiers {
				p, err := parsePrincipalFlag("verifier", raw)
				if err != nil {
					return err
				}
				set = append(set, p)
			}
			return opts.withApp(func(a *app) error {
				tx, err := a.market.RegisterTransaction(cmd.Context(), set)
				if err != nil {
					return err
				}
				return printJSON(cmd, tx)
			})
		},
	}
	register.Flags().StringSliceVar(&verifiers, "verifier", nil, "Authorized verifier address (repeatable)")

	var completeID, verifier string
	complete := &cobra.Command{
		Use:   "complete",
		Short: "Verify and complete a transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := opts.callerPrincipal()
			if err != nil {
				return err
			}
			id, err := parseIDFlag("id", completeID)
			if err != nil {
				return err
			}
			v, err := parsePrincipalFlag("verifier", verifier)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				tx, err := a.market.CompleteTransaction(cmd.Context(), id, v, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, tx)
			})
		},
	}
	complete.Flags().StringVar(&completeID, "id", "", "Transaction id")
	complete.Flags().StringVar(&verifier, "verifier", "", "Verifier address")

	var showID string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show a transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDFlag("id", showID)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				tx, err := a.market.Transaction(id)
				if err != nil {
					return err
				}
				return printJSON(cmd, tx)
			})
		},
	}
	show.Flags().StringVar(&showID, "id", "", "Transaction id")

	cmd.AddCommand(register, complete, show)
	return cmd
}
