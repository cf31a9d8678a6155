package main

import "github.com/spf13/cobra"

func newBankCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "bank", Short: "Inspect and move account balances"}

	var depositAccount, depositAmount string
	deposit := &cobra.Command{
		Use:   "deposit",
		Short: "Credit an account with externally sourced funds",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := parsePrincipalFlag("account", depositAccount)
			if err != nil {
				return err
			}
			value, err := parseAmount("amount", depositAmount)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				if err := a.market.Deposit(cmd.Context(), account, value); err != nil {
					return err
				}
				return printBalance(cmd, a, account.Hex())
			})
		},
	}
	deposit.Flags().StringVar(&depositAccount, "account", "", "Account address")
	deposit.Flags().StringVar(&depositAmount, "amount", "0", "Amount")

	var balanceAccount string
	balance := &cobra.Command{
		Use:   "balance",
		Short: "Show an account balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app) error {
				return printBalance(cmd, a, balanceAccount)
			})
		},
	}
	balance.Flags().StringVar(&balanceAccount, "account", "", "Account address")

	var to, amount string
	transfer := &cobra.Command{
		Use:   "transfer",
		Short: "Move funds from the caller to another account",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := opts.callerPrincipal()
			if err != nil {
				return err
			}
			dest, err := parsePrincipalFlag("to", to)
			if err != nil {
				return err
			}
			value, err := parseAmount("amount", amount)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app) error {
				if err := a.market.TransferFunds(cmd.Context(), caller, dest, value, caller); err != nil {
					return err
				}
				return printBalance(cmd, a, caller.Hex())
			})
		},
	}
	transfer.Flags().StringVar(&to, "to", "", "Recipient address")
	transfer.Flags().StringVar(&amount, "amount", "0", "Amount")

	cmd.AddCommand(deposit, balance, transfer)
	return cmd
}

func printBalance(cmd *cobra.Command, a *app, raw string) error {
	account, err := parsePrincipalFlag("account", raw)
	if err != nil {
		return err
	}
	bal, err := a.market.Balance(account)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]string{"account": account.Hex(), "balance": bal.String()})
}
