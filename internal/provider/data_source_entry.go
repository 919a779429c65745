package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
	"github.com/isometry/terraform-provider-ldap/internal/provider/validators"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &EntryDataSource{}
var _ datasource.DataSourceWithConfigure = &EntryDataSource{}

func NewEntryDataSource() datasource.DataSource {
	return &EntryDataSource{}
}

// EntryDataSource searches beneath the base DN and exposes the first match.
type EntryDataSource struct {
	ProviderData *ldapclient.ProviderData
}

// EntryDataSourceModel describes the data source data model.
type EntryDataSourceModel struct {
	ID         types.String `tfsdk:"id"`
	Filter     types.String `tfsdk:"filter"`
	Found      types.Bool   `tfsdk:"found"`
	DN         types.String `tfsdk:"dn"`
	Attributes types.Map    `tfsdk:"attributes"`
	EntryCount types.Int64  `tfsdk:"entry_count"`
}

func (d *EntryDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_entry"
}

func (d *EntryDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Searches the subtree beneath the provider's `user_dn` and returns the first matching entry. " +
			"Only the provider's `read_attributes` are returned.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The search filter.",
				Computed:            true,
			},
			"filter": schema.StringAttribute{
				MarkdownDescription: "Filter body without the outer parentheses, e.g. `uid=alice` or `&(objectClass=person)(mail=*)`.",
				Required:            true,
				Validators: []validator.String{
					validators.IsValidFilterBody(),
				},
			},
			"found": schema.BoolAttribute{
				MarkdownDescription: "Whether any entry matched.",
				Computed:            true,
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "DN of the first matching entry.",
				Computed:            true,
			},
			"attributes": schema.MapAttribute{
				MarkdownDescription: "First value of each attribute of the first matching entry. " +
					"`objectSid` and `objectGUID` are rendered in their string forms.",
				ElementType: types.StringType,
				Computed:    true,
			},
			"entry_count": schema.Int64Attribute{
				MarkdownDescription: "Number of entries that matched.",
				Computed:            true,
			},
		},
	}
}

func (d *EntryDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
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

func (d *EntryDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	ctx = initializeLogging(ctx)

	var data EntryDataSourceModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	filter := data.Filter.ValueString()

	logCompletion := logOperation(ctx, "ldap_entry", "read", map[string]any{
		"filter": filter,
	})
	defer func() { logCompletion(resp.Diagnostics) }()

	if d.ProviderData == nil {
		resp.Diagnostics.AddError("Provider Not Configured", "The LDAP provider has not been configured.")
		return
	}

	var dn string
	var count int
	attributes := map[string]string{}

	err := d.ProviderData.Do(ctx, func(c *ldapclient.Client) error {
		c.Search(ctx, filter)

		entries := c.Entries()
		count = len(entries)
		if count == 0 {
			return nil
		}

		dn = entries[0].DN
		for _, attr := range entries[0].Attributes {
			if value, ok := c.GetFormattedAttribute(attr.Name); ok {
				attributes[attr.Name] = value
			}
		}
		return nil
	})
	if err != nil {
		resp.Diagnostics.AddError("LDAP Client Unavailable", err.Error())
		return
	}

	tflog.Debug(ctx, "Entry data source completed", map[string]any{
		"filter":      filter,
		"entry_count": count,
		"dn":          dn,
	})

	attrs, diags := types.MapValueFrom(ctx, types.StringType, attributes)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.ID = types.StringValue(filter)
	data.Found = types.BoolValue(count > 0)
	data.DN = types.StringValue(dn)
	data.Attributes = attrs
	data.EntryCount = types.Int64Value(int64(count))

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
