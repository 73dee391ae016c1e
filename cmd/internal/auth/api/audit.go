package authapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"portal/cmd/internal/dbschema"
)

type auditEvent struct {
	Action    string
	SubjectID string
	Meta      map[string]any
}

// audit logs the event and, when a pool is configured, appends it to <schema>.audit_log.
// Audit failures never fail the request.
func (h *Handler) audit(ctx context.Context, r *http.Request, ev auditEvent) {
	if h == nil {
		return
	}
	action := strings.TrimSpace(ev.Action)
	if action == "" {
		return
	}

	ip := clientIP(r, h.cfg.TrustProxy)
	h.log.Info(action, "subject_id", ev.SubjectID, "ip", ipString(ip))

	if h.pool == nil {
		return
	}

	var metaVal *string
	if len(ev.Meta) > 0 {
		if b, err := json.Marshal(ev.Meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := h.pool.Exec(ctx, `
		INSERT INTO `+dbschema.Table(h.auditSchema, "audit_log")+` (
			subject_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, now(), $3, $4, $5::jsonb)
	`, trimOrNil(ev.SubjectID), action, trimOrNil(ipString(ip)), trimOrNil(r.UserAgent()), metaVal)
	if err != nil {
		h.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
