package main

import "github.com/spf13/cobra"

func newEscrowCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "escrow", Short: "Custody and release sale funds"}

	var propertyID, buyer, seller, amount string
	initiate := &cobra.Command{
		Use:   "initiate",
		Short: "Move funds from the caller into a locked escrow",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := opts.callerPrincipal()
			if err != nil {
				return err
			}
			pid, err := parseIDFlag("property", propertyID)
			if err != nil {
				return err
			}
			buyerAddr, err := parsePrincipalFlag("buyer", buyer)
			if err != nil {
				return err
			}
			sellerAddr, err := parsePrincipalFlag("seller", seller)
			if err != nil {
				return err
			}
			value, err := parseAmount("amount", amount)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				esc, err := a.market.InitiateEscrow(cmd.Context(), pid, buyerAddr, sellerAddr, value, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, esc)
			})
		},
	}
	initiate.Flags().StringVar(&propertyID, "property", "", "Property id")
	initiate.Flags().StringVar(&buyer, "buyer", "", "Buyer address")
	initiate.Flags().StringVar(&seller, "seller", "", "Seller address")
	initiate.Flags().StringVar(&amount, "amount", "0", "Amount to custody")

	var releaseID, recipient string
	release := &cobra.Command{
		Use:   "release",
		Short: "Release a locked escrow to a recipient",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := opts.callerPrincipal()
			if err != nil {
				return err
			}
			id, err := parseIDFlag("id", releaseID)
			if err != nil {
				return err
			}
			to, err := parsePrincipalFlag("to", recipient)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				esc, err := a.market.ReleaseEscrow(cmd.Context(), id, to, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, esc)
			})
		},
	}
	release.Flags().StringVar(&releaseID, "id", "", "Escrow id")
	release.Flags().StringVar(&recipient, "to", "", "Recipient address")

	var showID string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show an escrow",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDFlag("id", showID)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				esc, err := a.market.Escrow(id)
				if err != nil {
					return err
				}
				return printJSON(cmd, esc)
			})
		},
	}
	show.Flags().StringVar(&showID, "id", "", "Escrow id")

	cmd.AddCommand(initiate, release, show)
	return cmd
}
