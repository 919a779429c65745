package provider

import (
	"fmt"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

// providerDataFrom converts the value passed to Configure.
func providerDataFrom(data any) (*ldapclient.ProviderData, error) {
	pd, ok := data.(*ldapclient.ProviderData)
	if !ok {
		return nil, fmt.Errorf("expected *ldap.ProviderData, got: %T. Please report this issue to the provider developers", data)
	}
	return pd, nil
}
