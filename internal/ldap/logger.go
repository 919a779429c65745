package ldap

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Subsystem is the tflog subsystem the client logs under.
const Subsystem = "ldap"

// Logger receives the client's structured log events.
type Logger interface {
	Trace(ctx context.Context, msg string, fields map[string]any)
	Debug(ctx context.Context, msg string, fields map[string]any)
	Info(ctx context.Context, msg string, fields map[string]any)
	Warn(ctx context.Context, msg string, fields map[string]any)
	Error(ctx context.Context, msg string, fields map[string]any)
}

// TFLogger writes to a tflog subsystem.
type TFLogger struct {
	subsystem string
}

// NewTFLogger creates a logger for the given tflog subsystem.
func NewTFLogger(subsystem string) *TFLogger {
	return &TFLogger{subsystem: subsystem}
}

func (l *TFLogger) Trace(ctx context.Context, msg string, fields map[string]any) {
	tflog.SubsystemTrace(ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Debug(ctx context.Context, msg string, fields map[string]any) {
	tflog.SubsystemDebug(ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Info(ctx context.Context, msg string, fields map[string]any) {
	tflog.SubsystemInfo(ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Warn(ctx context.Context, msg string, fields map[string]any) {
	tflog.SubsystemWarn(ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Error(ctx context.Context, msg string, fields map[string]any) {
	tflog.SubsystemError(ctx, l.subsystem, msg, SanitizeFields(fields))
}

// NewLoggingContext registers the ldap subsystem on ctx, with its level
// taken from TF_LOG_PROVIDER_LDAP_CLIENT.
func NewLoggingContext(ctx context.Context) context.Context {
	return tflog.NewSubsystem(ctx, Subsystem,
		tflog.WithLevelFromEnv("TF_LOG_PROVIDER_LDAP_CLIENT"))
}

// logOperation logs the start and outcome of fn with its duration.
func logOperation(ctx context.Context, logger Logger, operation string, fields map[string]any, fn func() error) error {
	start := time.Now()

	fields = cloneFields(fields)
	fields["operation"] = operation

	logger.Debug(ctx, "Starting operation", fields)

	err := fn()

	fields["duration_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		logLDAPError(ctx, logger, operation, err, fields)
	} else {
		logger.Debug(ctx, "Operation completed successfully", fields)
	}

	return err
}

// logLDAPError logs LDAP-specific error information.
func logLDAPError(ctx context.Context, logger Logger, operation string, err error, fields map[string]any) {
	fields = cloneFields(fields)
	fields["operation"] = operation
	fields["error"] = err.Error()
	fields["category"] = string(GetErrorCategory(err))

	if ldapErr, ok := err.(*LDAPError); ok {
		err = ldapErr.Cause
	}

	if resultErr, ok := err.(*ldap.Error); ok {
		fields["ldap_result_code"] = resultErr.ResultCode
		if resultErr.MatchedDN != "" {
			fields["ldap_matched_dn"] = resultErr.MatchedDN
		}
		if resultErr.Err != nil {
			fields["ldap_diagnostic_message"] = resultErr.Err.Error()
		}
	}

	logger.Error(ctx, "LDAP operation failed", fields)
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+4)
	maps.Copy(out, fields)
	return out
}

var sensitiveKeys = map[string]bool{
	"password":       true,
	"passwd":         true,
	"admin_password": true,
	"userpassword":   true,
	"secret":         true,
	"credential":     true,
	"credentials":    true,
}

// SanitizeFields removes sensitive information from log fields.
func SanitizeFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	sanitized := make(map[string]any, len(fields))
	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			sanitized[k] = "[REDACTED]"
			continue
		}
		if str, ok := v.(string); ok && containsSensitivePattern(str) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		sanitized[k] = v
	}

	return sanitized
}

// containsSensitivePattern checks if a string contains patterns that might be sensitive.
func containsSensitivePattern(s string) bool {
	lower := strings.ToLower(s)
	for _, pattern := range []string{"password=", "passwd=", "secret=", "{sha}"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
