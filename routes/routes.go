package routes

import (
	"path"
	"slices"
	"strings"

	"github.com/MrEthical07/goSession/identity"
)

// Tier is the access class of a path.
type Tier string

const (
	TierPublic    Tier = "public"
	TierAuthOnly  Tier = "auth"
	TierProtected Tier = "protected"
	TierAdmin     Tier = "admin"
)

// rank orders tiers from least to most restrictive. Ties between prefix
// sets resolve to the more restrictive tier.
func (t Tier) rank() int {
	switch t {
	case TierPublic:
		return 0
	case TierAuthOnly:
		return 1
	case TierProtected:
		return 2
	case TierAdmin:
		return 3
	default:
		return 2
	}
}

// RequiresAuth reports whether the tier needs an authenticated principal.
func (t Tier) RequiresAuth() bool {
	return t == TierProtected || t == TierAdmin
}

// RouteConfig configures one exact path.
type RouteConfig struct {
	Path         string            `yaml:"path"`
	Tier         Tier              `yaml:"tier,omitempty"`
	RequiresAuth bool              `yaml:"requires_auth"`
	RedirectTo   string            `yaml:"redirect_to,omitempty"`
	Roles        []string          `yaml:"roles,omitempty"`
	Permissions  []string          `yaml:"permissions,omitempty"`
	Meta         map[string]string `yaml:"meta,omitempty"`
}

// tier resolves the configured tier. Without an explicit tier the
// RequiresAuth flag picks protected or public.
func (r RouteConfig) tier() Tier {
	if r.Tier != "" {
		return r.Tier
	}
	if r.RequiresAuth {
		return TierProtected
	}
	return TierPublic
}

// Table is the static route classification.
type Table struct {
	Routes          []RouteConfig `yaml:"routes"`
	Public          []string      `yaml:"public"`
	AuthOnly        []string      `yaml:"auth_only"`
	Protected       []string      `yaml:"protected"`
	Admin           []string      `yaml:"admin"`
	LoginRoute      string        `yaml:"login_route"`
	AfterLoginRoute string        `yaml:"after_login_route"`
}

// DefaultTable is the route layout of the travel proposal application.
func DefaultTable() Table {
	return Table{
		Routes: []RouteConfig{
			{Path: "/", Tier: TierPublic},
			{Path: "/proposals/new", RequiresAuth: true, Permissions: []string{"proposals.add_proposal"}},
			{Path: "/reports", RequiresAuth: true, Roles: []string{"managers", "admin"}},
			{Path: "/account", RequiresAuth: true, RedirectTo: "/account/profile"},
		},
		Public:          []string{"/about", "/contact", "/pricing", "/legal", "/share"},
		AuthOnly:        []string{"/login", "/signup", "/forgot-password", "/reset-password"},
		Protected:       []string{"/dashboard", "/proposals", "/clients", "/account", "/settings"},
		Admin:           []string{"/admin"},
		LoginRoute:      "/login",
		AfterLoginRoute: "/dashboard",
	}
}

// Controller answers lookups against a Table.
type Controller struct {
	exact map[string]RouteConfig
	table Table
}

// NewController normalizes t and builds the exact-match index. Empty
// login and after-login routes fall back to "/login" and "/dashboard".
func NewController(t Table) *Controller {
	if t.LoginRoute == "" {
		t.LoginRoute = "/login"
	}
	if t.AfterLoginRoute == "" {
		t.AfterLoginRoute = "/dashboard"
	}
	t.LoginRoute = Normalize(t.LoginRoute)
	t.AfterLoginRoute = Normalize(t.AfterLoginRoute)

	c := &Controller{exact: make(map[string]RouteConfig, len(t.Routes)), table: t}
	for _, r := range t.Routes {
		r.Path = Normalize(r.Path)
		c.exact[r.Path] = r
	}
	for _, set := range []*[]string{&c.table.Public, &c.table.AuthOnly, &c.table.Protected, &c.table.Admin} {
		norm := make([]string, len(*set))
		for i, p := range *set {
			norm[i] = Normalize(p)
		}
		*set = norm
	}
	return c
}

// Table returns the normalized table.
func (c *Controller) Table() Table { return c.table }

// Normalize strips query and fragment, cleans the path and drops any
// trailing slash except on the root.
func Normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// Route returns the exact configuration for p, if any.
func (c *Controller) Route(p string) (RouteConfig, bool) {
	r, ok := c.exact[Normalize(p)]
	return r, ok
}

// Classify maps p to a tier: exact routes first, then the longest matching
// prefix across the four sets. Unmatched paths are protected.
func (c *Controller) Classify(p string) Tier {
	p = Normalize(p)
	if r, ok := c.exact[p]; ok {
		return r.tier()
	}

	best, bestLen := TierProtected, -1
	try := func(tier Tier, prefixes []string) {
		for _, prefix := range prefixes {
			if !hasPathPrefix(p, prefix) {
				continue
			}
			if len(prefix) > bestLen || (len(prefix) == bestLen && tier.rank() > best.rank()) {
				best, bestLen = tier, len(prefix)
			}
		}
	}
	try(TierPublic, c.table.Public)
	try(TierAuthOnly, c.table.AuthOnly)
	try(TierProtected, c.table.Protected)
	try(TierAdmin, c.table.Admin)
	return best
}

// hasPathPrefix matches whole segments. The root prefix only matches the
// root itself, so listing "/" as public does not open every path.
func hasPathPrefix(p, prefix string) bool {
	if prefix == "/" {
		return p == "/"
	}
	if p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}

// RequiresAuth reports whether p needs an authenticated principal.
func (c *Controller) RequiresAuth(p string) bool {
	if r, ok := c.Route(p); ok && r.RequiresAuth {
		return true
	}
	return c.Classify(p).RequiresAuth()
}

// RedirectURL resolves where a request for p should go instead, in order:
// the route's configured redirect, the after-login route for an
// authenticated visitor on an auth-only page, the login route for an
// anonymous visitor on a page that requires auth. ok is false when no
// redirect is needed.
func (c *Controller) RedirectURL(p string, authenticated bool) (target string, ok bool) {
	p = Normalize(p)
	if r, found := c.exact[p]; found && r.RedirectTo != "" && Normalize(r.RedirectTo) != p {
		return r.RedirectTo, true
	}
	tier := c.Classify(p)
	if authenticated && tier == TierAuthOnly {
		return c.table.AfterLoginRoute, true
	}
	if !authenticated && c.RequiresAuth(p) && p != c.table.LoginRoute {
		return c.table.LoginRoute, true
	}
	return "", false
}

/*
====================================
PRINCIPAL / AUTHORIZATION
====================================
*/

// RoleAdmin is granted to superusers and required on the admin tier.
const RoleAdmin = "admin"

// RoleStaff is granted to staff users.
const RoleStaff = "staff"

// Principal is who is asking.
type Principal struct {
	Authenticated bool
	UserID        string
	Roles         []string
	Permissions   []string
}

// PrincipalFromUser derives roles from the user's groups plus the staff
// and admin flags. A nil user is anonymous.
func PrincipalFromUser(u *identity.User) Principal {
	if u == nil {
		return Principal{}
	}
	p := Principal{
		Authenticated: true,
		UserID:        u.ID,
		Roles:         append([]string(nil), u.Groups...),
		Permissions:   append([]string(nil), u.Permissions...),
	}
	if u.IsStaff {
		p.Roles = append(p.Roles, RoleStaff)
	}
	if u.IsSuperuser {
		p.Roles = append(p.Roles, RoleAdmin)
	}
	return p
}

// HasRoles reports whether p holds at least one of required. An empty
// requirement always passes.
func HasRoles(p Principal, required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if slices.Contains(p.Roles, r) {
			return true
		}
	}
	return false
}

// HasPermissions reports whether p holds every one of required.
func HasPermissions(p Principal, required []string) bool {
	for _, perm := range required {
		if !slices.Contains(p.Permissions, perm) {
			return false
		}
	}
	return true
}

// Reason explains a Decision.
type Reason string

const (
	ReasonAllowed              Reason = "allowed"
	ReasonConfiguredRedirect   Reason = "configured_redirect"
	ReasonAlreadyAuthenticated Reason = "already_authenticated"
	ReasonLoginRequired        Reason = "login_required"
	ReasonAdminOnly            Reason = "admin_only"
	ReasonMissingRole          Reason = "missing_role"
	ReasonMissingPermission    Reason = "missing_permission"
)

// Decision is the outcome of Decide.
type Decision struct {
	Path     string
	Tier     Tier
	Allow    bool
	Redirect string
	Reason   Reason
}

// Forbidden reports a denial that is not a redirect.
func (d Decision) Forbidden() bool {
	return !d.Allow && d.Redirect == ""
}

// Decide combines redirect resolution with the role and permission checks
// for p.
func (c *Controller) Decide(p string, who Principal) Decision {
	p = Normalize(p)
	d := Decision{Path: p, Tier: c.Classify(p)}

	if target, ok := c.RedirectURL(p, who.Authenticated); ok {
		d.Redirect = target
		switch {
		case !who.Authenticated && c.RequiresAuth(p):
			d.Reason = ReasonLoginRequired
		case who.Authenticated && d.Tier == TierAuthOnly:
			d.Reason = ReasonAlreadyAuthenticated
		default:
			d.Reason = ReasonConfiguredRedirect
		}
		if r, ok := c.exact[p]; ok && r.RedirectTo != "" && Normalize(r.RedirectTo) != p {
			d.Reason = ReasonConfiguredRedirect
		}
		return d
	}

	if d.Tier == TierAdmin && !HasRoles(who, []string{RoleAdmin, RoleStaff}) {
		d.Reason = ReasonAdminOnly
		return d
	}
	if r, ok := c.exact[p]; ok {
		if !HasRoles(who, r.Roles) {
			d.Reason = ReasonMissingRole
			return d
		}
		if !HasPermissions(who, r.Permissions) {
			d.Reason = ReasonMissingPermission
			return d
		}
	}

	d.Allow = true
	d.Reason = ReasonAllowed
	return d
}
