package provider

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/mapvalidator"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
	"github.com/isometry/terraform-provider-ldap/internal/provider/validators"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ resource.Resource = &AttributesResource{}
var _ resource.ResourceWithConfigure = &AttributesResource{}

func NewAttributesResource() resource.Resource {
	return &AttributesResource{}
}

// AttributesResource replaces attribute values on an existing entry.
type AttributesResource struct {
	ProviderData *ldapclient.ProviderData
}

// AttributesResourceModel describes the resource data model.
type AttributesResourceModel struct {
	ID     types.String `tfsdk:"id"`
	DN     types.String `tfsdk:"dn"`
	Values types.Map    `tfsdk:"values"`
}

func (r *AttributesResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_attributes"
}

func (r *AttributesResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Replaces the values of the given attributes on an existing entry. " +
			"Attributes not listed are left alone. Values are not read back, and destroying the resource " +
			"leaves the directory unchanged.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Full DN of the entry.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "DN of the entry relative to the provider's `user_dn` (e.g., `uid=alice`).",
				Required:            true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"values": schema.MapAttribute{
				MarkdownDescription: "Attribute values keyed by attribute name. An empty list removes all values of that attribute.",
				ElementType:         types.ListType{ElemType: types.StringType},
				Required:            true,
				Validators: []validator.Map{
					mapvalidator.SizeAtLeast(1),
				},
			},
		},
	}
}

func (r *AttributesResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return
	}

	pd, err := providerDataFrom(req.ProviderData)
	if err != nil {
		resp.Diagnostics.AddError("Unexpected Resource Configure Type", err.Error())
		return
	}

	r.ProviderData = pd
}

func (r *AttributesResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	ctx = initializeLogging(ctx)

	var data AttributesResourceModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	logCompletion := logOperation(ctx, "ldap_attributes", "create", map[string]any{"dn": data.DN.ValueString()})
	defer func() { logCompletion(resp.Diagnostics) }()

	if !r.replace(ctx, &data, &resp.Diagnostics) {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *AttributesResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	ctx = initializeLogging(ctx)

	var data AttributesResourceModel

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	tflog.Trace(ctx, "Attribute values are not read back, keeping state", map[string]any{"id": data.ID.ValueString()})

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *AttributesResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	ctx = initializeLogging(ctx)

	var data AttributesResourceModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	logCompletion := logOperation(ctx, "ldap_attributes", "update", map[string]any{"dn": data.DN.ValueString()})
	defer func() { logCompletion(resp.Diagnostics) }()

	if !r.replace(ctx, &data, &resp.Diagnostics) {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *AttributesResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	ctx = initializeLogging(ctx)

	var data AttributesResourceModel

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	tflog.Info(ctx, "Removing attributes from state, directory values are left unchanged", map[string]any{
		"id": data.ID.ValueString(),
	})
}

// replace applies the planned values and sets data.ID.
func (r *AttributesResource) replace(ctx context.Context, data *AttributesResourceModel, diags *diag.Diagnostics) bool {
	if r.ProviderData == nil {
		diags.AddError("Provider Not Configured", "The LDAP provider has not been configured.")
		return false
	}

	values := map[string][]string{}
	diags.Append(data.Values.ElementsAs(ctx, &values, false)...)
	if diags.HasError() {
		return false
	}

	var id string
	var replaced bool
	err := r.ProviderData.Do(ctx, func(c *ldapclient.Client) error {
		id = c.UserDN(data.DN.ValueString())
		replaced = c.Replace(ctx, data.DN.ValueString(), values)
		return nil
	})
	if err != nil {
		diags.AddError("LDAP Client Unavailable", err.Error())
		return false
	}

	if !replaced {
		diags.AddError(
			"Attribute Replace Failed",
			"The LDAP server rejected the modification of "+id+" (attributes: "+
				strings.Join(slices.Sorted(maps.Keys(values)), ", ")+"). "+
				"Enable debug logging with TF_LOG_PROVIDER_LDAP_CLIENT=DEBUG for the server response.",
		)
		return false
	}

	data.ID = types.StringValue(id)
	return true
}
