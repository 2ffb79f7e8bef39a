package routes

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadTable decodes a YAML route table. Missing sections keep the empty
// value; NewController fills in the login and after-login defaults.
func LoadTable(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("read route table: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("parse route table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// LoadTableFile reads a YAML route table from path.
func LoadTableFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open route table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

// Validate rejects entries that would make lookups ambiguous.
func (t Table) Validate() error {
	seen := make(map[string]struct{}, len(t.Routes))
	for i, r := range t.Routes {
		if r.Path == "" {
			return fmt.Errorf("route %d: path is required", i)
		}
		p := Normalize(r.Path)
		if _, dup := seen[p]; dup {
			return fmt.Errorf("route %q: duplicate path", p)
		}
		seen[p] = struct{}{}
		switch r.Tier {
		case "", TierPublic, TierAuthOnly, TierProtected, TierAdmin:
		default:
			return fmt.Errorf("route %q: unknown tier %q", p, r.Tier)
		}
		if r.RedirectTo != "" {
			if _, ok := SafeRedirect(r.RedirectTo, ""); !ok {
				return fmt.Errorf("route %q: redirect_to must be a relative path", p)
			}
		}
	}
	for _, special := range []string{t.LoginRoute, t.AfterLoginRoute} {
		if special == "" {
			continue
		}
		if _, ok := SafeRedirect(special, ""); !ok {
			return fmt.Errorf("route %q must be a relative path", special)
		}
	}
	return nil
}
