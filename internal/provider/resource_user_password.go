package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
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
var _ resource.Resource = &UserPasswordResource{}
var _ resource.ResourceWithConfigure = &UserPasswordResource{}
var _ resource.ResourceWithImportState = &UserPasswordResource{}

func NewUserPasswordResource() resource.Resource {
	return &UserPasswordResource{}
}

// UserPasswordResource sets userPassword on an entry as a {SHA} hash.
type UserPasswordResource struct {
	ProviderData *ldapclient.ProviderData
}

// UserPasswordResourceModel describes the resource data model.
type UserPasswordResourceModel struct {
	ID       types.String `tfsdk:"id"`
	DN       types.String `tfsdk:"dn"`
	Password types.String `tfsdk:"password"`
}

func (r *UserPasswordResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_user_password"
}

func (r *UserPasswordResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Sets the `userPassword` attribute of an entry to the `{SHA}` hash of `password`. " +
			"The directory value is not read back; destroying the resource leaves the password in place.",

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
			"password": schema.StringAttribute{
				MarkdownDescription: "New password.",
				Required:            true,
				Sensitive:           true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
		},
	}
}

func (r *UserPasswordResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
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

func (r *UserPasswordResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	ctx = initializeLogging(ctx)

	var data UserPasswordResourceModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	logCompletion := logOperation(ctx, "ldap_user_password", "create", map[string]any{"dn": data.DN.ValueString()})
	defer func() { logCompletion(resp.Diagnostics) }()

	id, ok := r.changePassword(ctx, &data, &resp.Diagnostics)
	if !ok {
		return
	}

	data.ID = types.StringValue(id)
	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *UserPasswordResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	ctx = initializeLogging(ctx)

	var data UserPasswordResourceModel

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	tflog.Trace(ctx, "Password is write-only, keeping state", map[string]any{"id": data.ID.ValueString()})

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *UserPasswordResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	ctx = initializeLogging(ctx)

	var data UserPasswordResourceModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	logCompletion := logOperation(ctx, "ldap_user_password", "update", map[string]any{"dn": data.DN.ValueString()})
	defer func() { logCompletion(resp.Diagnostics) }()

	id, ok := r.changePassword(ctx, &data, &resp.Diagnostics)
	if !ok {
		return
	}

	data.ID = types.StringValue(id)
	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *UserPasswordResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	ctx = initializeLogging(ctx)

	var data UserPasswordResourceModel

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	tflog.Info(ctx, "Removing password from state, directory value is left unchanged", map[string]any{
		"id": data.ID.ValueString(),
	})
}

func (r *UserPasswordResource) changePassword(ctx context.Context, data *UserPasswordResourceModel, diags *diag.Diagnostics) (string, bool) {
	if r.ProviderData == nil {
		diags.AddError("Provider Not Configured", "The LDAP provider has not been configured.")
		return "", false
	}

	var id string
	var changed bool
	err := r.ProviderData.Do(ctx, func(c *ldapclient.Client) error {
		id = c.UserDN(data.DN.ValueString())
		changed = c.ChangePassword(ctx, data.DN.ValueString(), data.Password.ValueString())
		return nil
	})
	if err != nil {
		diags.AddError("LDAP Client Unavailable", err.Error())
		return "", false
	}

	if !changed {
		diags.AddError(
			"Password Change Failed",
			"The LDAP server rejected the userPassword change for "+id+". "+
				"Check that the entry exists and that the provider's bind identity may write userPassword. "+
				"Enable debug logging with TF_LOG_PROVIDER_LDAP_CLIENT=DEBUG for the server response.",
		)
		return "", false
	}

	return id, true
}

// ImportState accepts the relative DN as the import ID. The password must be
// set in configuration and is applied on the next apply.
func (r *UserPasswordResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	resource.ImportStatePassthroughID(ctx, path.Root("dn"), req, resp)
}
