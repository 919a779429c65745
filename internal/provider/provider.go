package provider

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/listvalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/providervalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
	"github.com/isometry/terraform-provider-ldap/internal/provider/validators"
)

// Ensure LDAPProvider satisfies various provider interfaces.
var _ provider.Provider = &LDAPProvider{}
var _ provider.ProviderWithConfigValidators = &LDAPProvider{}

// LDAPProvider defines the provider implementation.
type LDAPProvider struct {
	// Version is set to the provider version on release, "dev" when the
	// provider is built and ran locally, and "test" when running acceptance
	// testing.
	Version string

	// clientOptions are passed to every client the provider constructs.
	clientOptions []ldapclient.Option
}

// LDAPProviderModel describes the provider data model.
type LDAPProviderModel struct {
	Host           types.String `tfsdk:"host"`
	Port           types.Int64  `tfsdk:"port"`
	UserDN         types.String `tfsdk:"user_dn"`
	AdminDN        types.String `tfsdk:"admin_dn"`
	AdminPassword  types.String `tfsdk:"admin_password"`
	ReadAttributes types.List   `tfsdk:"read_attributes"`
	BindAdmin      types.Bool   `tfsdk:"bind_admin"`

	// TLS and transport
	UseTLS         types.Bool  `tfsdk:"use_tls"`
	StartTLS       types.Bool  `tfsdk:"start_tls"`
	SkipTLSVerify  types.Bool  `tfsdk:"skip_tls_verify"`
	ConnectTimeout types.Int64 `tfsdk:"connect_timeout"`

	DNPolicy types.String `tfsdk:"dn_policy"`

	// Kerberos settings (optional)
	KerberosRealm    types.String `tfsdk:"kerberos_realm"`
	KerberosUsername types.String `tfsdk:"kerberos_username"`
	KerberosPassword types.String `tfsdk:"kerberos_password"`
	KerberosKeytab   types.String `tfsdk:"kerberos_keytab"`
	KerberosConfig   types.String `tfsdk:"kerberos_config"`
	KerberosCCache   types.String `tfsdk:"kerberos_ccache"`
	KerberosSPN      types.String `tfsdk:"kerberos_spn"`
}

func (p *LDAPProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "ldap"
	resp.Version = p.Version
}

func (p *LDAPProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "The LDAP provider binds to an LDAP directory, looks up entries and replaces attributes " +
			"and passwords through a single shared connection.",
		Attributes: map[string]schema.Attribute{
			"host": schema.StringAttribute{
				MarkdownDescription: "LDAP server host name. Can be set via the `LDAP_HOST` environment variable.",
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"port": schema.Int64Attribute{
				MarkdownDescription: "LDAP server port. Defaults to `389`. Can be set via the `LDAP_PORT` environment variable.",
				Optional:            true,
				Validators: []validator.Int64{
					int64validator.Between(1, 65535),
				},
			},
			"user_dn": schema.StringAttribute{
				MarkdownDescription: "Base DN. Relative DNs given to data sources and resources are appended to it, " +
					"and searches run beneath it (e.g., `ou=people,dc=example,dc=org`). " +
					"Can be set via the `LDAP_USER_DN` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},
			"admin_dn": schema.StringAttribute{
				MarkdownDescription: "DN of the administrative account, used verbatim. " +
					"Can be set via the `LDAP_ADMIN_DN` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},
			"admin_password": schema.StringAttribute{
				MarkdownDescription: "Password of the administrative account. " +
					"Can be set via the `LDAP_ADMIN_PASSWORD` environment variable.",
				Optional:  true,
				Sensitive: true,
			},
			"read_attributes": schema.ListAttribute{
				MarkdownDescription: "Attributes requested by searches. An empty list requests all user attributes. " +
					"Can be set via the `LDAP_READ_ATTRIBUTES` environment variable as a comma-separated list.",
				ElementType: types.StringType,
				Optional:    true,
				Validators: []validator.List{
					listvalidator.UniqueValues(),
					listvalidator.ValueStringsAre(stringvalidator.LengthAtLeast(1)),
				},
			},
			"bind_admin": schema.BoolAttribute{
				MarkdownDescription: "Bind with the admin credentials (or Kerberos, when configured) when the provider is configured. " +
					"Without admin credentials the connection is bound anonymously. Defaults to `true`.",
				Optional: true,
			},

			"use_tls": schema.BoolAttribute{
				MarkdownDescription: "Connect with `ldaps://`. Defaults to `false`. " +
					"Can be set via the `LDAP_USE_TLS` environment variable.",
				Optional: true,
			},
			"start_tls": schema.BoolAttribute{
				MarkdownDescription: "Upgrade the plain connection with StartTLS. Conflicts with `use_tls`. " +
					"Can be set via the `LDAP_START_TLS` environment variable.",
				Optional: true,
			},
			"skip_tls_verify": schema.BoolAttribute{
				MarkdownDescription: "Skip TLS certificate verification. Not recommended for production. Defaults to `false`. " +
					"Can be set via the `LDAP_SKIP_TLS_VERIFY` environment variable.",
				Optional: true,
			},
			"connect_timeout": schema.Int64Attribute{
				MarkdownDescription: "Connection and request timeout in seconds. Defaults to `30`. " +
					"Can be set via the `LDAP_CONNECT_TIMEOUT` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
			"dn_policy": schema.StringAttribute{
				MarkdownDescription: "How an empty relative DN is composed: `base_fallback` uses the base DN, " +
					"`strict` leaves it empty (which binds anonymously). Defaults to `base_fallback`. " +
					"Can be set via the `LDAP_DN_POLICY` environment variable.",
				Optional: true,
				Validators: []validator.String{
					stringvalidator.OneOf(ldapclient.UserDNPolicies...),
				},
			},

			"kerberos_realm": schema.StringAttribute{
				MarkdownDescription: "Kerberos realm for GSSAPI authentication (e.g., `EXAMPLE.ORG`). " +
					"Can be set via the `LDAP_KERBEROS_REALM` environment variable.",
				Optional: true,
			},
			"kerberos_username": schema.StringAttribute{
				MarkdownDescription: "Kerberos principal name without realm. " +
					"Can be set via the `LDAP_KERBEROS_USERNAME` environment variable.",
				Optional: true,
			},
			"kerberos_password": schema.StringAttribute{
				MarkdownDescription: "Kerberos password, used when neither a credential cache nor a keytab is configured. " +
					"Can be set via the `LDAP_KERBEROS_PASSWORD` environment variable.",
				Optional:  true,
				Sensitive: true,
			},
			"kerberos_keytab": schema.StringAttribute{
				MarkdownDescription: "Path to Kerberos keytab file. " +
					"Can be set via the `LDAP_KERBEROS_KEYTAB` environment variable.",
				Optional: true,
			},
			"kerberos_config": schema.StringAttribute{
				MarkdownDescription: "Path to Kerberos configuration file. Defaults to `/etc/krb5.conf`. " +
					"Can be set via the `LDAP_KERBEROS_CONFIG` environment variable.",
				Optional: true,
			},
			"kerberos_ccache": schema.StringAttribute{
				MarkdownDescription: "Path to Kerberos credential cache file. " +
					"Can be set via the `LDAP_KERBEROS_CCACHE` environment variable.",
				Optional: true,
			},
			"kerberos_spn": schema.StringAttribute{
				MarkdownDescription: "Override Service Principal Name for Kerberos authentication. Defaults to `ldap/<host>`. " +
					"Can be set via the `LDAP_KERBEROS_SPN` environment variable.",
				Optional: true,
			},
		},
	}
}

// ConfigValidators implements provider.ProviderWithConfigValidators.
func (p *LDAPProvider) ConfigValidators(ctx context.Context) []provider.ConfigValidator {
	return []provider.ConfigValidator{
		providervalidator.Conflicting(
			path.MatchRoot("use_tls"),
			path.MatchRoot("start_tls"),
		),
	}
}

func (p *LDAPProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var data LDAPProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	ctx = p.configureLogging(ctx)

	tflog.Info(ctx, "Configuring LDAP provider", map[string]any{
		"version": p.Version,
	})

	config := p.buildLDAPConfig(ctx, &data, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	start := time.Now()
	client, err := ldapclient.NewClient(ctx, config, p.clientOptions...)
	if err != nil {
		tflog.Error(ctx, "Failed to create LDAP client", map[string]any{
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})

		switch {
		case ldapclient.IsConfigurationError(err):
			resp.Diagnostics.AddError(
				"Invalid LDAP Configuration",
				"The provider configuration is incomplete or invalid. "+
					"Set the attribute in the provider block or its LDAP_* environment variable.\n\n"+
					"Configuration Error: "+err.Error(),
			)
		case ldapclient.IsUnsupportedEnvironmentError(err):
			resp.Diagnostics.AddError(
				"LDAP Support Unavailable",
				"The provider could not obtain an LDAP connection in this environment.\n\n"+
					"Error: "+err.Error(),
			)
		default:
			resp.Diagnostics.AddError(
				"Unable to Connect to LDAP Server",
				"The provider could not establish a connection to the LDAP server. "+
					"Please verify the host, port and TLS settings.\n\n"+
					"Connection Error: "+err.Error(),
			)
		}
		return
	}

	if p.getBoolValue(data.BindAdmin, "LDAP_BIND_ADMIN", true) {
		start = time.Now()
		if !client.BindServiceAccount(ctx) {
			_ = client.Close()
			tflog.Error(ctx, "Service account bind failed", map[string]any{
				"duration_ms": time.Since(start).Milliseconds(),
			})
			resp.Diagnostics.AddError(
				"Authentication Failed",
				"The provider could not bind to the LDAP server with the configured admin or Kerberos credentials. "+
					"Enable debug logging with TF_LOG_PROVIDER_LDAP_CLIENT=DEBUG for the server response.",
			)
			return
		}

		tflog.Info(ctx, "Service account bind successful", map[string]any{
			"bind_dn":     client.BoundDN(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}

	tflog.Info(ctx, "LDAP provider configured successfully")

	providerData := ldapclient.NewProviderData(client)

	resp.DataSourceData = providerData
	resp.ResourceData = providerData
}

// configureLogging registers the logging subsystems and sets persistent fields.
func (p *LDAPProvider) configureLogging(ctx context.Context) context.Context {
	ctx = initializeLogging(ctx)
	ctx = tflog.SetField(ctx, "provider", "ldap")
	ctx = tflog.SetField(ctx, "provider_version", p.Version)

	tflog.Debug(ctx, "LDAP provider logging configured")

	return ctx
}

// buildLDAPConfig constructs the client configuration from provider config and environment variables.
func (p *LDAPProvider) buildLDAPConfig(ctx context.Context, data *LDAPProviderModel, diags *diag.Diagnostics) *ldapclient.Config {
	config := ldapclient.DefaultConfig()

	config.Host = p.getStringValue(data.Host, "LDAP_HOST")
	config.Port = int(p.getInt64Value(data.Port, "LDAP_PORT", ldapclient.DefaultPort))
	config.UserDN = p.getStringValue(data.UserDN, "LDAP_USER_DN")
	config.AdminDN = p.getStringValue(data.AdminDN, "LDAP_ADMIN_DN")
	config.AdminPassword = p.getStringValue(data.AdminPassword, "LDAP_ADMIN_PASSWORD")
	config.ReadAttributes = p.getListValue(ctx, data.ReadAttributes, "LDAP_READ_ATTRIBUTES", diags)

	config.UseTLS = p.getBoolValue(data.UseTLS, "LDAP_USE_TLS", false)
	config.StartTLS = p.getBoolValue(data.StartTLS, "LDAP_START_TLS", false)
	config.InsecureSkipVerify = p.getBoolValue(data.SkipTLSVerify, "LDAP_SKIP_TLS_VERIFY", false)

	if timeout := p.getInt64Value(data.ConnectTimeout, "LDAP_CONNECT_TIMEOUT", 30); timeout > 0 {
		config.Timeout = time.Duration(timeout) * time.Second
	}

	if policy := p.getStringValue(data.DNPolicy, "LDAP_DN_POLICY"); policy != "" {
		config.DNPolicy = ldapclient.UserDNPolicy(policy)
	}

	config.KerberosRealm = p.getStringValue(data.KerberosRealm, "LDAP_KERBEROS_REALM")
	config.KerberosUsername = p.getStringValue(data.KerberosUsername, "LDAP_KERBEROS_USERNAME")
	config.KerberosPassword = p.getStringValue(data.KerberosPassword, "LDAP_KERBEROS_PASSWORD")
	config.KerberosKeytab = p.getStringValue(data.KerberosKeytab, "LDAP_KERBEROS_KEYTAB")
	config.KerberosConfig = p.getStringValue(data.KerberosConfig, "LDAP_KERBEROS_CONFIG")
	config.KerberosCCache = p.getStringValue(data.KerberosCCache, "LDAP_KERBEROS_CCACHE")
	config.KerberosSPN = p.getStringValue(data.KerberosSPN, "LDAP_KERBEROS_SPN")

	if config.AdminDN != "" && config.AdminPassword == "" && !config.HasKerberos() {
		diags.AddWarning(
			"Admin Password Not Set",
			"admin_dn is set without admin_password. The provider will bind anonymously and the admin DN is ignored.",
		)
	}

	return config
}

// Helper functions for configuration value resolution

func (p *LDAPProvider) getStringValue(configValue types.String, envVar string) string {
	if !configValue.IsNull() && configValue.ValueString() != "" {
		return configValue.ValueString()
	}
	return os.Getenv(envVar)
}

func (p *LDAPProvider) getBoolValue(configValue types.Bool, envVar string, defaultValue bool) bool {
	if !configValue.IsNull() {
		return configValue.ValueBool()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseBool(envValue); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (p *LDAPProvider) getInt64Value(configValue types.Int64, envVar string, defaultValue int64) int64 {
	if !configValue.IsNull() {
		return configValue.ValueInt64()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseInt(envValue, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (p *LDAPProvider) getListValue(ctx context.Context, configValue types.List, envVar string, diags *diag.Diagnostics) []string {
	if !configValue.IsNull() && !configValue.IsUnknown() {
		var values []string
		diags.Append(configValue.ElementsAs(ctx, &values, false)...)
		return values
	}

	var values []string
	for _, v := range strings.Split(os.Getenv(envVar), ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func (p *LDAPProvider) Resources(ctx context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		NewUserPasswordResource,
		NewAttributesResource,
	}
}

func (p *LDAPProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewBindDataSource,
		NewEntryDataSource,
	}
}

// New returns a provider factory. Client options are applied to the client
// built in Configure.
func New(version string, clientOptions ...ldapclient.Option) func() provider.Provider {
	return func() provider.Provider {
		return &LDAPProvider{
			Version:       version,
			clientOptions: clientOptions,
		}
	}
}
