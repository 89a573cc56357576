package tokengate

import (
	"context"
	"time"
)

const (
	auditEventLoginSuccess  = "login_success"
	auditEventLoginFailure  = "login_failure"
	auditEventLogout        = "logout"
	auditEventLogoutFailure = "logout_failure"
	auditEventTokenRejected = "token_rejected"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SubjectID: subjectID,
		TokenID:   tokenID,
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = string(ReasonOf(err))
	}

	e.audit.Emit(ctx, event)
}
