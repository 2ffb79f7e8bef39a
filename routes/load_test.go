package routes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const tableYAML = `
login_route: /signin
after_login_route: /home
public: [/docs]
auth_only: [/signin]
protected: [/home]
admin: [/ops]
routes:
  - path: /reports
    requires_auth: true
    roles: [managers]
    meta:
      title: Reports
  - path: /status
    tier: public
`

func TestLoadTable(t *testing.T) {
	table, err := LoadTable(strings.NewReader(tableYAML))
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if table.LoginRoute != "/signin" || table.AfterLoginRoute != "/home" {
		t.Fatalf("unexpected special routes: %+v", table)
	}
	if len(table.Routes) != 2 || table.Routes[0].Meta["title"] != "Reports" {
		t.Fatalf("unexpected routes: %+v", table.Routes)
	}

	c := NewController(table)
	if got := c.Classify("/ops/queue"); got != TierAdmin {
		t.Fatalf("/ops/queue = %s", got)
	}
	if got := c.Classify("/status"); got != TierPublic {
		t.Fatalf("/status = %s", got)
	}
	if got, _ := c.RedirectURL("/reports", false); got != "/signin" {
		t.Fatalf("redirect = %q", got)
	}
}

func TestLoadTableRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":       "public: [",
		"missing path": "routes:\n  - requires_auth: true\n",
		"duplicate":    "routes:\n  - path: /a\n  - path: /a/\n",
		"unknown tier": "routes:\n  - path: /a\n    tier: vip\n",
		"foreign":      "routes:\n  - path: /a\n    redirect_to: https://evil.example.net/\n",
		"login route":  "login_route: https://evil.example.net/login\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadTable(strings.NewReader(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadTableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	if err := os.WriteFile(path, []byte(tableYAML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTableFile(path); err != nil {
		t.Fatalf("LoadTableFile: %v", err)
	}
	if _, err := LoadTableFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}
}

func TestDefaultTableValid(t *testing.T) {
	if err := DefaultTable().Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}
}
