package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd, sweepCmd, resetCmd, auditCmd, deleteAccountCmd)

	sweepCmd.Flags().String("user", "", "Sweep only this learner")
	resetCmd.Flags().String("user", "", "Learner whose requested bookings are reset")
	auditCmd.Flags().String("user", "", "Account to audit")
	deleteAccountCmd.Flags().String("user", "", "Account to delete")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and the job queue tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Open has already applied the application schema.
		if err := current.MigrateRiver(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Refund and remove requested bookings whose teacher no longer exists",
	Long: `Without --user every learner holding an orphaned request is swept, the
same pass the server schedules. Learners leased by a running sweeper are skipped.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if raw, _ := cmd.Flags().GetString("user"); raw == "" {
			sum, err := current.Sweeper.Run(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, sum)
		}
		id, err := userFlag(cmd)
		if err != nil {
			return err
		}
		ok, res, err := current.Sweeper.RunFor(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("learner %s is being swept by another process", id)
		}
		return printJSON(cmd, res)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Refund and cancel every requested booking a learner holds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, err := userFlag(cmd)
		if err != nil {
			return err
		}
		res, err := current.Bookings.ResetUserBookings(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Compare an account's balance with its transaction log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, err := userFlag(cmd)
		if err != nil {
			return err
		}
		rep, err := current.Auditor.Audit(cmd.Context(), id)
		if err != nil {
			return err
		}
		if err := printJSON(cmd, rep); err != nil {
			return err
		}
		if !rep.Consistent {
			return fmt.Errorf("balance %d does not match ledger sum %d", rep.Balance, rep.LedgerSum)
		}
		return nil
	},
}

var deleteAccountCmd = &cobra.Command{
	Use:   "delete-account",
	Short: "Hard-delete an account; bookings naming it as teacher become orphans",
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, err := userFlag(cmd)
		if err != nil {
			return err
		}
		if err := current.Auth.DeleteAccount(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "account %s deleted\n", id)
		return nil
	},
}
