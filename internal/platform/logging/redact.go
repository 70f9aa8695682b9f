package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
	"golang.org/x/oauth2"
)

// secretFields are attribute keys and struct field names whose values never
// reach a log line. Token covers config.RemoteServiceConfig.
var secretFields = []string{
	"password", "secret", "token", "Token", "apiKey", "api_key",
	"accessToken", "access_token", "refreshToken", "refresh_token",
	"credential", "credentials", "authorization", "Authorization",
	"cookie", "session", "privateKey", "private_key",
}

var secretValues = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^(bearer|basic)\s+.+$`),                              // Authorization header value
}

// NewReplaceAttr returns a slog ReplaceAttr that masks secrets by key, by
// value shape, and by type (the remote service's oauth2 token). extra is
// appended to those rules.
func NewReplaceAttr(extra ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	opts := make([]masq.Option, 0, len(secretFields)+len(secretValues)+4+len(extra))

	for _, f := range secretFields {
		opts = append(opts, masq.WithFieldName(f))
	}

	for _, re := range secretValues {
		opts = append(opts, masq.WithRegex(re))
	}

	opts = append(opts,
		masq.WithFieldPrefix("secret"),
		masq.WithFieldPrefix("private"),
		masq.WithType[oauth2.Token](),
		masq.WithType[*oauth2.Token](),
	)

	return masq.New(append(opts, extra...)...)
}
