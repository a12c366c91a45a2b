package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// Middleware injects a localizer into every request context. The language
// comes from the lang query parameter, then Accept-Language, matched against
// the loaded locales; anything unsupported falls back to the default.
func Middleware() func(http.Handler) http.Handler {
	matcher := language.NewMatcher(Languages())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag, _ := language.MatchStrings(matcher, r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
			base, _ := tag.Base()
			ctx := WithLocalizer(r.Context(), NewLocalizer(base.String()))
			w.Header().Set("Content-Language", base.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
