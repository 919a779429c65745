package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

func commandBind(opts *options) *cobra.Command {
	var password string
	var verbatim bool

	cmd := &cobra.Command{
		Use:   "bind [dn]",
		Short: "Check credentials by binding with them",
		Long: "Bind with the given DN and password. Unless --verbatim is set, dn is composed with --user-dn.\n" +
			"An empty password binds anonymously and the DN is ignored.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			var dn string
			if len(args) > 0 {
				dn = args[0]
			}

			if !client.Bind(cmd.Context(), dn, password, !verbatim) {
				return fmt.Errorf("bind rejected: %w", errOperationFailed)
			}

			if bound := client.BoundDN(); bound != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "bound as %s\n", bound)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "bound anonymously")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "w", envString("BIND_PASSWORD", ""), "Password to bind with")
	cmd.Flags().BoolVar(&verbatim, "verbatim", false, "Use dn as given instead of composing it with --user-dn")

	return cmd
}

func commandSearch(opts *options) *cobra.Command {
	var attribute, value, guid string

	cmd := &cobra.Command{
		Use:   "search [filter]",
		Short: "Search beneath --user-dn and print the matching entries",
		Long: "Search the subtree beneath --user-dn. The filter is given without its outer parentheses,\n" +
			"or built from --attr and --value with the value escaped, or from an objectGUID with --guid.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter string
			switch {
			case len(args) > 0:
				filter = args[0]
			case attribute != "" && value != "":
				filter = ldapclient.EqualityFilter(attribute, value)
			case guid != "":
				raw, err := ldapclient.GUIDToBytes(guid)
				if err != nil {
					return fmt.Errorf("invalid --guid: %w", err)
				}
				filter = ldapclient.BinaryEqualityFilter("objectGUID", raw)
			default:
				return errors.New("a filter, both --attr and --value, or --guid are required")
			}

			if err := ldapclient.ValidateFilterBody(filter); err != nil {
				return fmt.Errorf("invalid filter %q: %w", filter, err)
			}

			client, err := opts.connectAsService(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			client.Search(cmd.Context(), filter)

			entries := client.Entries()
			if len(entries) == 0 {
				return fmt.Errorf("no entries match %q: %w", filter, errOperationFailed)
			}

			out := cmd.OutOrStdout()
			for i, entry := range entries {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "dn: %s\n", entry.DN)
				for _, attr := range entry.Attributes {
					for _, raw := range attr.ByteValues {
						fmt.Fprintf(out, "%s: %s\n", attr.Name, ldapclient.FormatAttributeValue(attr.Name, raw))
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&attribute, "attr", "", "Attribute for an equality filter")
	cmd.Flags().StringVar(&value, "value", "", "Value for an equality filter")
	cmd.Flags().StringVar(&guid, "guid", "", "objectGUID of the entry, in its string form")

	return cmd
}

func commandPasswd(opts *options) *cobra.Command {
	var password, uid string

	cmd := &cobra.Command{
		Use:   "passwd [dn]",
		Short: "Set userPassword on an entry to the {SHA} hash of a new password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dn, err := targetDN(args, uid)
			if err != nil {
				return err
			}
			if password == "" {
				return errors.New("--new-password is required")
			}

			client, err := opts.connectAsService(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if !client.ChangePassword(cmd.Context(), dn, password) {
				return fmt.Errorf("password change for %s rejected: %w", client.UserDN(dn), errOperationFailed)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "password changed for %s\n", client.UserDN(dn))
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "new-password", "s", envString("NEW_PASSWORD", ""), "New password")
	cmd.Flags().StringVar(&uid, "uid", "", "Target uid=<value> instead of a relative DN")

	return cmd
}

func commandReplace(opts *options) *cobra.Command {
	var uid string

	cmd := &cobra.Command{
		Use:   "replace [dn] attr=value...",
		Short: "Replace attribute values on an entry",
		Long: "Replace the values of the named attributes. Repeat attr=value for multiple values;\n" +
			"attr= on its own removes all values of attr.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if uid == "" && len(args) < 2 {
				return errors.New("a dn and at least one attr=value are required")
			}
			dn, err := targetDN(args[:min(1, len(args))], uid)
			if err != nil {
				return err
			}
			if uid == "" {
				args = args[1:]
			}

			attributes, err := parseAttributes(args)
			if err != nil {
				return err
			}

			client, err := opts.connectAsService(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			names := strings.Join(slices.Sorted(maps.Keys(attributes)), ", ")
			if !client.Replace(cmd.Context(), dn, attributes) {
				return fmt.Errorf("replace of %s on %s rejected: %w", names, client.UserDN(dn), errOperationFailed)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "replaced %s on %s\n", names, client.UserDN(dn))
			return nil
		},
	}

	cmd.Flags().StringVar(&uid, "uid", "", "Target uid=<value> instead of a relative DN")

	return cmd
}

// targetDN returns the relative DN from args, or uid=<uid> when uid is set.
func targetDN(args []string, uid string) (string, error) {
	if uid != "" {
		return ldapclient.RelativeDN("uid", uid), nil
	}
	if len(args) == 0 || args[0] == "" {
		return "", errors.New("a dn or --uid is required")
	}
	if err := ldapclient.ValidateDN(args[0]); err != nil {
		return "", fmt.Errorf("invalid dn %q: %w", args[0], err)
	}
	return args[0], nil
}

// parseAttributes turns attr=value arguments into a replace set.
func parseAttributes(args []string) (map[string][]string, error) {
	attributes := map[string][]string{}
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected attr=value, got %q", arg)
		}
		if value == "" {
			if _, exists := attributes[name]; !exists {
				attributes[name] = []string{}
			}
			continue
		}
		attributes[name] = append(attributes[name], value)
	}
	if len(attributes) == 0 {
		return nil, errors.New("at least one attr=value is required")
	}
	return attributes, nil
}
