package middleware

import (
	"net/http"
	"net/url"
	"path"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

type gate struct {
	loginPath  string
	public     []string
	assets     []string
	extensions map[string]struct{}
	dev        []string
}

// Gatekeeper passes assets, public paths and, outside production, the
// development prefixes. Any other request without a resolved user is
// redirected with 303 to the login page, carrying the original path and
// query in the from parameter.
func Gatekeeper(m *goSession.Manager) func(http.Handler) http.Handler {
	cfg := m.Config()
	g := &gate{
		loginPath:  cfg.Gate.LoginPath,
		public:     cfg.Gate.PublicPrefixes,
		assets:     cfg.Gate.AssetPrefixes,
		extensions: make(map[string]struct{}, len(cfg.Gate.AssetExtensions)),
	}
	for _, ext := range cfg.Gate.AssetExtensions {
		g.extensions[ext] = struct{}{}
	}
	if devBypassCompiled && !cfg.Production {
		g.dev = cfg.Gate.DevPrefixes
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.allows(r.URL.Path) || goSession.CurrentUser(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			target := g.loginPath + "?from=" + url.QueryEscape(originalTarget(r.URL))
			m.Metrics().Inc(goSession.MetricGateRedirect)
			m.Logger().DebugContext(r.Context(), "gate redirect",
				"path", r.URL.Path,
				"request_id", goSession.RequestIDFromContext(r.Context()),
			)
			http.Redirect(w, r, target, http.StatusSeeOther)
		})
	}
}

func (g *gate) allows(p string) bool {
	if g.isAsset(p) {
		return true
	}
	return hasAnyPrefix(p, g.public) || hasAnyPrefix(p, g.dev)
}

func (g *gate) isAsset(p string) bool {
	if hasAnyPrefix(p, g.assets) {
		return true
	}
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" {
		return false
	}
	_, ok := g.extensions[ext]
	return ok
}

func hasAnyPrefix(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func originalTarget(u *url.URL) string {
	target := u.EscapedPath()
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return target
}
