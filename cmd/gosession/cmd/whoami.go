package cmd

import (
	"io"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type sessionReport struct {
	Authenticated bool     `yaml:"authenticated"`
	Mode          string   `yaml:"mode"`
	Username      string   `yaml:"username,omitempty"`
	FullUsername  string   `yaml:"full_username,omitempty"`
	Avatar        string   `yaml:"avatar,omitempty"`
	Permissions   []string `yaml:"permissions,omitempty"`
	TokenExpires  string   `yaml:"token_expires,omitempty"`
}

func reportSession(snap goSession.Snapshot) sessionReport {
	r := sessionReport{
		Authenticated: snap.Authenticated,
		Mode:          snap.Mode.String(),
		Username:      snap.Username,
		FullUsername:  snap.FullUsername,
		Permissions:   snap.Permissions.Granted(),
	}
	if snap.Profile != nil {
		r.Avatar = snap.Profile.AvatarURL
	}
	if info, err := jwt.Inspect(snap.Token); err == nil && !info.ExpiresAt.IsZero() {
		r.TokenExpires = info.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return r
}

func writeReport(w io.Writer, snap goSession.Snapshot) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(reportSession(snap))
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Aliases: []string{"check"},
	Short:   "Restore persisted credentials and report the current user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(engine *goSession.Engine) error {
			engine.Check(cmd.Context())
			return writeReport(cmd.OutOrStdout(), engine.Snapshot())
		})
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
