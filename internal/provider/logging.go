package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

// initializeLogging registers the provider and client subsystems.
// Call it at the start of every Configure, Read, Create, Update and Delete.
// Levels follow TF_LOG_PROVIDER_LDAP_PROVIDER and TF_LOG_PROVIDER_LDAP_CLIENT.
func initializeLogging(ctx context.Context) context.Context {
	ctx = tflog.NewSubsystem(ctx, "provider",
		tflog.WithLevelFromEnv("TF_LOG_PROVIDER_LDAP_PROVIDER"))
	return ldapclient.NewLoggingContext(ctx)
}

// logOperation logs entry to a data source or resource operation and returns
// a function that logs its outcome from the final diagnostics.
func logOperation(ctx context.Context, typeName, operation string, fields map[string]any) func(diags diag.Diagnostics) {
	start := time.Now()

	entry := map[string]any{
		"type":      typeName,
		"operation": operation,
	}
	for k, v := range fields {
		entry[k] = v
	}
	tflog.SubsystemDebug(ctx, "provider", "Starting operation", ldapclient.SanitizeFields(entry))

	return func(diags diag.Diagnostics) {
		entry["duration_ms"] = time.Since(start).Milliseconds()

		if diags.HasError() {
			first := diags.Errors()[0]
			entry["error"] = fmt.Sprintf("%s: %s", first.Summary(), first.Detail())
			tflog.SubsystemError(ctx, "provider", "Operation failed", ldapclient.SanitizeFields(entry))
			return
		}

		tflog.SubsystemDebug(ctx, "provider", "Operation completed", ldapclient.SanitizeFields(entry))
	}
}
