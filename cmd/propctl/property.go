package main

import (
	"github.com/spf13/cobra"

	"propchain/native/pricing"
)

func newPriceCmd(opts *rootOptions) *cobra.Command {
	var demand uint64
	var basePrice string
	var reputation uint64
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Quote the dynamic listing price and reputation discount under the configured policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := parseAmount("base-price", basePrice)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				price, err := a.market.QuoteListingPrice(cmd.Context(), pricing.Factor{Demand: demand, BasePrice: base})
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{
					"price":           price.String(),
					"discountPercent": a.market.QuoteDiscount(pricing.Reputation{Score: reputation}),
				})
			})
		},
	}
	cmd.Flags().Uint64Var(&demand, "demand", 0, "Demand score")
	cmd.Flags().StringVar(&basePrice, "base-price", "0", "Base price")
	cmd.Flags().Uint64Var(&reputation, "reputation", 0, "Tenant reputation score")
	return cmd
}

func newPropertyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "property", Short: "Register, list and transfer properties"}

	var price string
	register := &cobra.Command{
		Use:   "register",
		Short: "Register a property owned by the caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := opts.callerPrincipal()
			if err != nil {
				return err
			}
			amount, err := parseAmount("price", price)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				prop, err := a.market.RegisterProperty(cmd.Context(), caller, amount, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, prop)
			})
		},
	}
	register.Flags().StringVar(&price, "price", "0", "Initial price")

	var listID, listPrice string
	list := &cobra.Command{
		Use:   "list",
		Short: "List a property for sale at a fixed price",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := opts.callerPrincipal()
			if err != nil {
				return err
			}
			id, err := parseIDFlag("id", listID)
			if err != nil {
				return err
			}
			amount, err := parseAmount("price", listPrice)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				prop, err := a.market.ListForSale(cmd.Context(), id, amount, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, prop)
			})
		},
	}
	list.Flags().StringVar(&listID, "id", "", "Property id")
	list.Flags().StringVar(&listPrice, "price", "0", "Asking price")

	var dynID, dynBase string
	var dynDemand uint64
	listDynamic := &cobra.Command{
		Use:   "list-dynamic",
		Short: "List a property at the demand-adjusted price",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := opts.callerPrincipal()
			if err != nil {
				return err
			}
			id, err := parseIDFlag("id", dynID)
			if err != nil {
				return err
			}
			base, err := parseAmount("base-price", dynBase)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				prop, err := a.market.ListWithDynamicPricing(cmd.Context(), id, pricing.Factor{Demand: dynDemand, BasePrice: base}, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, prop)
			})
		},
	}
	listDynamic.Flags().StringVar(&dynID, "id", "", "Property id")
	listDynamic.Flags().StringVar(&dynBase, "base-price", "0", "Base price")
	listDynamic.Flags().Uint64Var(&dynDemand, "demand", 0, "Demand score")

	var delistID string
	delist := &cobra.Command{
		Use:   "delist",
		Short: "Withdraw a property from sale",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := opts.callerPrincipal()
			if err != nil {
				return err
			}
			id, err := parseIDFlag("id", delistID)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				prop, err := a.market.Delist(cmd.Context(), id, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, prop)
			})
		},
	}
	delist.Flags().StringVar(&delistID, "id", "", "Property id")

	var transferID, transferTo string
	transfer := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer ownership to a new principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := opts.callerPrincipal()
			if err != nil {
				return err
			}
			id, err := parseIDFlag("id", transferID)
			if err != nil {
				return err
			}
			to, err := parsePrincipalFlag("to", transferTo)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				prop, hist, err := a.market.TransferOwnership(cmd.Context(), id, to, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{"property": prop, "history": hist})
			})
		},
	}
	transfer.Flags().StringVar(&transferID, "id", "", "Property id")
	transfer.Flags().StringVar(&transferTo, "to", "", "New owner")

	var showID string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show a property and its ownership history",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDFlag("id", showID)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				prop, err := a.market.Property(id)
				if err != nil {
					return err
				}
				hist, err := a.market.History(id)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{"property": prop, "history": hist})
			})
		},
	}
	show.Flags().StringVar(&showID, "id", "", "Property id")

	cmd.AddCommand(register, list, listDynamic, delist, transfer, show)
	return cmd
}
