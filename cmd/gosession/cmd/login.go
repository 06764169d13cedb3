package cmd

import (
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/spf13/cobra"
)

var (
	loginUsername string
	loginPassword string
	loginNext     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with a username and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(engine *goSession.Engine) error {
			creds := goSession.LoginCredentials{Username: loginUsername, Password: loginPassword}
			err := engine.Login(cmd.Context(), loginNext, creds, func(xerr *goSession.ExchangeError) {
				fmt.Fprintf(cmd.ErrOrStderr(), "login rejected: %v\n", xerr)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", engine.Snapshot().FullUsername)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear persisted credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(engine *goSession.Engine) error {
			_ = engine.Restore(cmd.Context())
			return engine.Logout(cmd.Context())
		})
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "account username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "account password")
	loginCmd.Flags().StringVar(&loginNext, "next", "/", "in-app path to navigate to after login")
	_ = loginCmd.MarkFlagRequired("username")
	_ = loginCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
