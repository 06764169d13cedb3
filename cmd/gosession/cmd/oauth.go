package cmd

import (
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/spf13/cobra"
)

var (
	oauthNext  string
	oauthCode  string
	oauthState string
)

var oauthCmd = &cobra.Command{
	Use:   "oauth",
	Short: "OAuth authorization code flow",
	Long: `Commands for the OAuth authorization code flow. "begin" registers a client
and prints the authorize URL; "callback" exchanges the code the instance
redirected back with. Both need --redis so the registration survives between
the two invocations.`,
}

var oauthBeginCmd = &cobra.Command{
	Use:   "begin",
	Short: "Register a client and print the authorize URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(engine *goSession.Engine) error {
			_, err := engine.BeginOAuthAuthorization(cmd.Context(), oauthNext)
			return err
		})
	},
}

var oauthCallbackCmd = &cobra.Command{
	Use:   "callback",
	Short: "Exchange an authorization code for tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(engine *goSession.Engine) error {
			if err := engine.CompleteOAuthLogin(cmd.Context(), oauthCode, oauthState); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", engine.Snapshot().FullUsername)
			return nil
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchange the stored refresh token for a new pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(engine *goSession.Engine) error {
			if err := engine.RefreshOAuthToken(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "token refreshed")
			return nil
		})
	},
}

func init() {
	oauthBeginCmd.Flags().StringVar(&oauthNext, "next", "/", "in-app path to return to after authorization")
	oauthCallbackCmd.Flags().StringVar(&oauthCode, "code", "", "authorization code")
	oauthCallbackCmd.Flags().StringVar(&oauthState, "state", "/", "state returned with the code")
	_ = oauthCallbackCmd.MarkFlagRequired("code")

	oauthCmd.AddCommand(oauthBeginCmd)
	oauthCmd.AddCommand(oauthCallbackCmd)
	rootCmd.AddCommand(oauthCmd)
	rootCmd.AddCommand(refreshCmd)
}
