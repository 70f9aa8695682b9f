package middleware

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

const (
	defaultSubjectHeader = "X-User-ID"
	defaultRolesHeader   = "X-User-Roles"

	writerKey = "writer"
)

// Writer is the caller the gateway vouches for on a write route. The gateway
// has already validated the token; these headers are trusted as-is.
type Writer struct {
	Subject string
	Roles   []string
}

func (w Writer) hasAnyRole(roles []string) bool {
	return slices.ContainsFunc(roles, func(r string) bool { return slices.Contains(w.Roles, r) })
}

type authHeaders struct {
	subject, roles string
}

func headersFor(cfg *config.AuthConfig) authHeaders {
	h := authHeaders{subject: defaultSubjectHeader, roles: defaultRolesHeader}
	if cfg == nil {
		return h
	}

	if cfg.SubjectHeader != "" {
		h.subject = cfg.SubjectHeader
	}

	if cfg.RolesHeader != "" {
		h.roles = cfg.RolesHeader
	}

	return h
}

func (h authHeaders) writer(c *gin.Context) Writer {
	return Writer{
		Subject: strings.TrimSpace(c.GetHeader(h.subject)),
		Roles:   splitRoles(c.GetHeader(h.roles)),
	}
}

// RequireWriter guards adds, imports, filter changes and syncs. A request
// without a subject gets 401. With cfg.WriteRoles set, a subject holding none
// of them gets 403. Accepted subjects are attached to the request logger.
func RequireWriter(cfg *config.AuthConfig) gin.HandlerFunc {
	headers := headersFor(cfg)

	var roles []string
	if cfg != nil {
		roles = cfg.WriteRoles
	}

	denied := fmt.Sprintf("insufficient permissions: one of roles [%s] required", strings.Join(roles, ", "))

	return func(c *gin.Context) {
		w := headers.writer(c)

		switch {
		case w.Subject == "":
			dto.AbortWithErrorCode(c, dto.ErrorCodeUnauthorized, "authentication required")
			return
		case len(roles) > 0 && !w.hasAnyRole(roles):
			dto.AbortWithErrorCode(c, dto.ErrorCodeForbidden, denied)
			return
		}

		c.Set(writerKey, w)
		c.Request = c.Request.WithContext(logging.With(c.Request.Context(), slog.String("subject", w.Subject)))

		c.Next()
	}
}

// WriterFrom returns the identity RequireWriter accepted for this request.
func WriterFrom(c *gin.Context) (Writer, bool) {
	v, ok := c.Get(writerKey)
	if !ok {
		return Writer{}, false
	}

	w, ok := v.(Writer)

	return w, ok
}

func splitRoles(s string) []string {
	var roles []string

	for r := range strings.SplitSeq(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}

	return roles
}
