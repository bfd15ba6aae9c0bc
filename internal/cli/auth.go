package cli

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Makepad-fr/tada-cloud/internal/auth"
	"github.com/Makepad-fr/tada-cloud/internal/config"
	"github.com/Makepad-fr/tada-cloud/internal/store/rtdb"
	"github.com/Makepad-fr/tada-cloud/internal/ui"
)

// newRemoteStore builds the database client. A token from the config file
// wins over TADA_TOKEN and the credentials file.
func newRemoteStore(cfg *config.Config, logger *zap.Logger) (*rtdb.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no configuration")
	}
	token := cfg.Token
	if token == "" {
		ti, err := auth.GetToken()
		if err != nil {
			return nil, fmt.Errorf("token: %w", err)
		}
		if ti != nil {
			token = ti.Token
		}
	}
	return rtdb.New(cfg.BaseURL, rtdb.WithToken(token), rtdb.WithLogger(logger.Named("rtdb")))
}

func (r *runner) doAuthLogin() int {
	fmt.Fprint(r.opt.Out, "Paste your token: ")
	token, err := r.in.ReadString('\n')
	token = strings.TrimSpace(token)
	if token == "" {
		if err != nil {
			r.fail("read token: " + err.Error())
		} else {
			r.fail("read token: empty")
		}
		return 1
	}
	if err := auth.SetToken(token, nil); err != nil {
		r.fail("save token: " + err.Error())
		return 1
	}
	r.ok("logged in")
	return 0
}

func (r *runner) doAuthLogout() int {
	ti, _ := auth.GetToken()
	if ti != nil && ti.Source == auth.SourceEnv {
		r.ok("token is provided by " + auth.EnvToken + " env var (nothing to delete)")
		return 0
	}
	if err := auth.DeleteToken(); err != nil {
		r.fail("logout: " + err.Error())
		return 1
	}
	r.ok("logged out")
	return 0
}

func (r *runner) doAuthStatus() int {
	out := r.opt.Out
	ti, err := auth.GetToken()
	if err != nil {
		r.fail(err.Error())
		return 1
	}
	if ti == nil {
		fmt.Fprintln(out, ui.C(ui.Current().Muted, "not logged in"))
		fmt.Fprintln(out, "Run: todo auth login")
		return 0
	}
	fmt.Fprintf(out, "source: %s\n", ti.Source)
	if ti.ExpiresAt != nil {
		fmt.Fprintf(out, "expires: %s\n", ti.ExpiresAt.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintln(out, "expires: (unknown)")
	}
	fmt.Fprintln(out, "env override: "+auth.EnvToken)
	return 0
}

// whoami decodes a JWT payload locally (unverified); opaque tokens print
// basic info.
func (r *runner) doAuthWhoAmI() int {
	out := r.opt.Out
	ti, _ := auth.GetToken()
	if ti == nil {
		r.fail("not logged in. Run: todo auth login")
		return 2
	}
	parts := strings.Split(ti.Token, ".")
	if len(parts) == 3 {
		if p, err := decodeB64URL(parts[1]); err == nil {
			fmt.Fprintln(out, "JWT payload:")
			fmt.Fprintln(out, p)
			return 0
		}
	}
	fmt.Fprintln(out, "Opaque token (cannot introspect locally).")
	fmt.Fprintln(out, "source:", ti.Source)
	return 0
}

func decodeB64URL(s string) (string, error) {
	dec, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return "", err
	}
	return string(dec), nil
}
