package bearer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/tenantauth/tenant"
)

// AuditEvents returns Events that write one log entry per authentication
// outcome to log. Entries are best-effort and never reject a request.
func AuditEvents(log logrus.FieldLogger) *Events {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Events{
		OnTokenValidated: func(_ context.Context, id *Identity) error {
			log.WithFields(logrus.Fields{
				"tenant":  id.Tenant,
				"subject": id.Subject,
				"issuer":  id.Issuer,
			}).Info("bearer token accepted")
			return nil
		},
		OnAuthenticationFailed: func(_ context.Context, t tenant.ID, reason string, err error) {
			e := log.WithFields(logrus.Fields{"tenant": t, "reason": reason})
			if err != nil {
				e = e.WithError(err)
			}
			e.Info("bearer token rejected")
		},
	}
}
