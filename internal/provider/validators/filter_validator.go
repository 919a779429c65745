package validators

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

var _ validator.String = filterBodyValidator{}

// filterBodyValidator validates an LDAP filter written without its outer parentheses.
type filterBodyValidator struct{}

func (v filterBodyValidator) Description(_ context.Context) string {
	return "value must be an LDAP filter without the outer parentheses"
}

func (v filterBodyValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v filterBodyValidator) ValidateString(ctx context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()
	if strings.TrimSpace(value) == "" {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid LDAP Filter",
			"The filter cannot be empty.",
		)
		return
	}

	if strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")") {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid LDAP Filter",
			fmt.Sprintf("The filter %q is wrapped in parentheses. Omit the outer pair, for example %q.", value, strings.TrimSuffix(strings.TrimPrefix(value, "("), ")")),
		)
		return
	}

	if err := ldapclient.ValidateFilterBody(value); err != nil {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid LDAP Filter",
			err.Error(),
		)
	}
}

// IsValidFilterBody returns a validator for search filters that are sent
// wrapped in one pair of parentheses, such as "uid=alice" or
// "&(objectClass=person)(mail=*)".
func IsValidFilterBody() validator.String {
	return filterBodyValidator{}
}
