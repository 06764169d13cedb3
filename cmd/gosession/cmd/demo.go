package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/fakeinstance"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var demoMetrics bool

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk through every flow against an in-process instance",
	Long: `demo starts an in-process instance and an in-memory Redis, then logs in
with a password, logs out, completes an OAuth authorization, refreshes the
token and logs out again, reporting the session after each step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	demoCmd.Flags().BoolVar(&demoMetrics, "metrics", false, "print Prometheus metrics at the end")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(ctx context.Context, out io.Writer) error {
	srv := fakeinstance.New()
	defer srv.Close()
	srv.AddUser("demo", "demo", map[string]bool{"library": true, "settings": true})

	mr, err := miniredis.Run()
	if err != nil {
		return fmt.Errorf("start miniredis: %w", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := goSession.DefaultConfig()
	cfg.Server.InstanceURL = srv.InstanceURL()
	cfg.Logging.Level = "warn"
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	engine, err := goSession.New().
		WithConfig(cfg).
		WithRedis(client).
		WithNavigator(printNavigator{out: out}).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	step := func(title string) {
		fmt.Fprintf(out, "\n== %s\n", title)
	}
	report := func() error {
		return writeReport(out, engine.Snapshot())
	}

	step("check")
	engine.Check(ctx)
	if err := report(); err != nil {
		return err
	}

	step("password login")
	if err := engine.Login(ctx, "/library", goSession.LoginCredentials{Username: "demo", Password: "demo"}, nil); err != nil {
		return err
	}
	if err := report(); err != nil {
		return err
	}

	step("logout")
	if err := engine.Logout(ctx); err != nil {
		return err
	}

	step("oauth authorization")
	authorizeURL, err := engine.BeginOAuthAuthorization(ctx, "/favorites")
	if err != nil {
		return err
	}
	code, state, err := consent(ctx, authorizeURL)
	if err != nil {
		return err
	}
	if err := engine.CompleteOAuthLogin(ctx, code, state); err != nil {
		return err
	}
	if err := report(); err != nil {
		return err
	}

	step("refresh")
	if err := engine.RefreshOAuthToken(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "token refreshed")

	step("logout")
	if err := engine.Logout(ctx); err != nil {
		return err
	}
	if err := report(); err != nil {
		return err
	}

	if demoMetrics {
		step("metrics")
		rec := httptest.NewRecorder()
		promexport.NewPrometheusExporter(engine).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if _, err := io.Copy(out, rec.Body); err != nil {
			return err
		}
	}
	return nil
}

// consent plays the user agent on the authorize page and returns the code
// and state carried by the redirect back to the client.
func consent(ctx context.Context, authorizeURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authorizeURL, nil)
	if err != nil {
		return "", "", err
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return "", "", fmt.Errorf("authorize: unexpected status %d", resp.StatusCode)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		return "", "", err
	}
	code := loc.Query().Get("code")
	if code == "" {
		return "", "", errors.New("authorize: no code in redirect")
	}
	return code, loc.Query().Get("state"), nil
}
