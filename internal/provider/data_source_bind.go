package provider

import (
	"context"
	"errors"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &BindDataSource{}
var _ datasource.DataSourceWithConfigure = &BindDataSource{}

func NewBindDataSource() datasource.DataSource {
	return &BindDataSource{}
}

// BindDataSource checks a set of credentials by binding with them.
type BindDataSource struct {
	ProviderData *ldapclient.ProviderData
}

// BindDataSourceModel describes the data source data model.
type BindDataSourceModel struct {
	ID            types.String `tfsdk:"id"`
	DN            types.String `tfsdk:"dn"`
	Password      types.String `tfsdk:"password"`
	IsUser        types.Bool   `tfsdk:"is_user"`
	Authenticated types.Bool   `tfsdk:"authenticated"`
	Anonymous     types.Bool   `tfsdk:"anonymous"`
	BindDN        types.String `tfsdk:"bind_dn"`
}

func (d *BindDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_bind"
}

func (d *BindDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Binds to the directory with the given credentials and reports whether the server accepted them. " +
			"The shared connection is bound back to the provider's admin identity afterwards.\n\n" +
			"An empty `password` results in an anonymous bind: the server accepts it and `dn` is ignored.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The DN the bind was performed as, or `anonymous`.",
				Computed:            true,
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "DN to bind as. With `is_user` it is relative to the provider's `user_dn` (e.g., `uid=alice`).",
				Optional:            true,
			},
			"password": schema.StringAttribute{
				MarkdownDescription: "Password to bind with.",
				Optional:            true,
				Sensitive:           true,
			},
			"is_user": schema.BoolAttribute{
				MarkdownDescription: "Compose `dn` with the provider's `user_dn`. Defaults to `true`.",
				Optional:            true,
			},
			"authenticated": schema.BoolAttribute{
				MarkdownDescription: "Whether the server accepted the bind.",
				Computed:            true,
			},
			"anonymous": schema.BoolAttribute{
				MarkdownDescription: "Whether the bind was anonymous because the DN or password was empty.",
				Computed:            true,
			},
			"bind_dn": schema.StringAttribute{
				MarkdownDescription: "The composed DN the server accepted. Empty for anonymous or rejected binds.",
				Computed:            true,
			},
		},
	}
}

func (d *BindDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return
	}

	pd, err := providerDataFrom(req.ProviderData)
	if err != nil {
		resp.Diagnostics.AddError("Unexpected Data Source Configure Type", err.Error())
		return
	}

	d.ProviderData = pd
}

func (d *BindDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	ctx = initializeLogging(ctx)

	var data BindDataSourceModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	isUser := data.IsUser.IsNull() || data.IsUser.ValueBool()
	dn := data.DN.ValueString()

	logCompletion := logOperation(ctx, "ldap_bind", "read", map[string]any{
		"dn":      dn,
		"is_user": isUser,
	})
	defer func() { logCompletion(resp.Diagnostics) }()

	if d.ProviderData == nil {
		resp.Diagnostics.AddError("Provider Not Configured", "The LDAP provider has not been configured.")
		return
	}

	var authenticated, restored bool
	var boundDN string
	err := d.ProviderData.Do(ctx, func(c *ldapclient.Client) error {
		authenticated = c.Bind(ctx, dn, data.Password.ValueString(), isUser)
		boundDN = c.BoundDN()

		restored = true
		if c.HasServiceAccount() {
			restored = c.BindServiceAccount(ctx)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ldapclient.ErrClientUnavailable) {
			resp.Diagnostics.AddError("LDAP Client Unavailable", err.Error())
			return
		}
		resp.Diagnostics.AddError("Error Performing Bind", err.Error())
		return
	}

	if !restored {
		resp.Diagnostics.AddWarning(
			"Admin Rebind Failed",
			"The shared connection could not be bound back to the provider's admin identity. "+
				"Later operations in this run may fail.",
		)
	}

	tflog.Debug(ctx, "Bind data source completed", map[string]any{
		"authenticated": authenticated,
		"bind_dn":       boundDN,
	})

	data.IsUser = types.BoolValue(isUser)
	data.Authenticated = types.BoolValue(authenticated)
	data.Anonymous = types.BoolValue(authenticated && boundDN == "")
	data.BindDN = types.StringValue(boundDN)
	if boundDN != "" {
		data.ID = types.StringValue(boundDN)
	} else {
		data.ID = types.StringValue("anonymous")
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
