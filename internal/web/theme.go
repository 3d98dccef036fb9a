package web

import (
	"net/http"
	"strings"
	"time"
)

const (
	// ThemeCookieName stores the visitor's light/dark preference.
	ThemeCookieName = "theme"

	themeLight = "light"
	themeDark  = "dark"

	themeCookieMaxAge = 365 * 24 * time.Hour
)

// themeFromRequest returns the stored preference, or def when the cookie
// is missing or holds anything but "light"/"dark".
func themeFromRequest(r *http.Request, def string) string {
	if c, err := r.Cookie(ThemeCookieName); err == nil {
		switch c.Value {
		case themeLight, themeDark:
			return c.Value
		}
	}
	return def
}

func toggleTheme(current string) string {
	if current == themeDark {
		return themeLight
	}
	return themeDark
}

// handleTheme flips the stored theme and redirects back to the page the
// toggle was pressed on.
func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	next := toggleTheme(themeFromRequest(r, s.cfg.DefaultTheme))

	http.SetCookie(w, &http.Cookie{
		Name:     ThemeCookieName,
		Value:    next,
		Path:     "/",
		MaxAge:   int(themeCookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, safeReturnPath(r.FormValue("return")), http.StatusSeeOther)
}

// safeReturnPath only allows same-site absolute paths.
func safeReturnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}
