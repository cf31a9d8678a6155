package main

import (
	"github.com/spf13/cobra"

	"propchain/native/pricing"
)

func newLeaseCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "lease", Short: "Manage rental agreements"}

	var propertyID, tenant, rent string
	var due uint64
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an agreement owned by the caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := opts.callerPrincipal()
			if err != nil {
				return err
			}
			pid, err := parseIDFlag("property", propertyID)
			if err != nil {
				return err
			}
			tenantAddr, err := parsePrincipalFlag("tenant", tenant)
			if err != nil {
				return err
			}
			amount, err := parseAmount("rent", rent)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				agreement, err := a.market.CreateLease(cmd.Context(), pid, tenantAddr, amount, due, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, agreement)
			})
		},
	}
	create.Flags().StringVar(&propertyID, "property", "", "Property id")
	create.Flags().StringVar(&tenant, "tenant", "", "Tenant address")
	create.Flags().StringVar(&rent, "rent", "0", "Rent amount")
	create.Flags().Uint64Var(&due, "due", 0, "Due date")

	var discountID string
	var score uint64
	discount := &cobra.Command{
		Use:   "discount",
		Short: "Apply the reputation discount to the rent",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDFlag("id", discountID)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				agreement, err := a.market.ApplyDiscount(cmd.Context(), id, pricing.Reputation{Score: score})
				if err != nil {
					return err
				}
				return printJSON(cmd, agreement)
			})
		},
	}
	discount.Flags().StringVar(&discountID, "id", "", "Agreement id")
	discount.Flags().Uint64Var(&score, "reputation", 0, "Tenant reputation score")

	var penaltyID string
	var currentDate uint64
	penalty := &cobra.Command{
		Use:   "penalty",
		Short: "Apply the late penalty when the agreement is past due",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDFlag("id", penaltyID)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				agreement, err := a.market.ApplyLatePenalty(cmd.Context(), id, currentDate)
				if err != nil {
					return err
				}
				return printJSON(cmd, agreement)
			})
		},
	}
	penalty.Flags().StringVar(&penaltyID, "id", "", "Agreement id")
	penalty.Flags().Uint64Var(&currentDate, "date", 0, "Current date")

	var renewID, renewRent string
	var renewDue uint64
	renew := &cobra.Command{
		Use:   "renew",
		Short: "Renew an active agreement",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := opts.callerPrincipal()
			if err != nil {
				return err
			}
			id, err := parseIDFlag("id", renewID)
			if err != nil {
				return err
			}
			amount, err := parseAmount("rent", renewRent)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				agreement, err := a.market.RenewLease(cmd.Context(), id, renewDue, amount, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, agreement)
			})
		},
	}
	renew.Flags().StringVar(&renewID, "id", "", "Agreement id")
	renew.Flags().StringVar(&renewRent, "rent", "0", "New rent amount")
	renew.Flags().Uint64Var(&renewDue, "due", 0, "New due date")

	var terminateID, reason string
	terminate := &cobra.Command{
		Use:   "terminate",
		Short: "Terminate an agreement",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := opts.callerPrincipal()
			if err != nil {
				return err
			}
			id, err := parseIDFlag("id", terminateID)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				agreement, err := a.market.TerminateLease(cmd.Context(), id, reason, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, agreement)
			})
		},
	}
	terminate.Flags().StringVar(&terminateID, "id", "", "Agreement id")
	terminate.Flags().StringVar(&reason, "reason", "", "Termination reason")

	var showID string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show an agreement",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDFlag("id", showID)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				agreement, err := a.market.Agreement(id)
				if err != nil {
					return err
				}
				return printJSON(cmd, agreement)
			})
		},
	}
	show.Flags().StringVar(&showID, "id", "", "Agreement id")

	cmd.AddCommand(create, discount, penalty, renew, terminate, show)
	return cmd
}
