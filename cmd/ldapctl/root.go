package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

var (
	DefaultLogLevel = "warn"
	DefaultTimeout  = 30 * time.Second

	DefaultEnvBase = "LDAP_"
)

// errOperationFailed is returned when the directory rejects an operation.
var errOperationFailed = errors.New("operation failed")

type options struct {
	host           string
	port           int
	userDN         string
	adminDN        string
	adminPassword  string
	readAttributes []string
	useTLS         bool
	startTLS       bool
	skipTLSVerify  bool
	timeout        time.Duration
	dnPolicy       string
	bindAdmin      bool

	kerberosRealm    string
	kerberosUsername string
	kerberosKeytab   string
	kerberosConfig   string
	kerberosCCache   string
	kerberosSPN      string

	logLevel      string
	logTimestamp  bool
	clientOptions []ldapclient.Option
}

func newRootCommand(clientOptions ...ldapclient.Option) *cobra.Command {
	opts := &options{clientOptions: clientOptions}

	cmd := &cobra.Command{
		Use:           "ldapctl",
		Short:         "Run LDAP client operations against a directory server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.host, "host", envString("HOST", ""), "LDAP server host name")
	flags.IntVar(&opts.port, "port", envInt("PORT", ldapclient.DefaultPort), "LDAP server port")
	flags.StringVar(&opts.userDN, "user-dn", envString("USER_DN", ""), "Base DN that relative DNs are composed with")
	flags.StringVar(&opts.adminDN, "admin-dn", envString("ADMIN_DN", ""), "Admin DN, used verbatim")
	flags.StringVar(&opts.adminPassword, "admin-password", envString("ADMIN_PASSWORD", ""), "Admin password")
	flags.StringSliceVar(&opts.readAttributes, "read-attributes", envList("READ_ATTRIBUTES"), "Attributes requested by search")
	flags.BoolVar(&opts.useTLS, "use-tls", envBool("USE_TLS", false), "Connect with ldaps://")
	flags.BoolVar(&opts.startTLS, "start-tls", envBool("START_TLS", false), "Upgrade the connection with StartTLS")
	flags.BoolVar(&opts.skipTLSVerify, "skip-tls-verify", envBool("SKIP_TLS_VERIFY", false), "Skip server certificate verification")
	flags.DurationVar(&opts.timeout, "timeout", envSeconds("CONNECT_TIMEOUT", DefaultTimeout), "Connection and request timeout")
	flags.StringVar(&opts.dnPolicy, "dn-policy", envString("DN_POLICY", string(ldapclient.UserDNBaseFallback)),
		"Composition of an empty relative DN ("+strings.Join(ldapclient.UserDNPolicies, ", ")+")")
	flags.BoolVar(&opts.bindAdmin, "bind-admin", envBool("BIND_ADMIN", true), "Bind as the service account before search, passwd and replace")

	flags.StringVar(&opts.kerberosRealm, "kerberos-realm", envString("KERBEROS_REALM", ""), "Kerberos realm; enables GSSAPI binds")
	flags.StringVar(&opts.kerberosUsername, "kerberos-username", envString("KERBEROS_USERNAME", ""), "Kerberos principal name")
	flags.StringVar(&opts.kerberosKeytab, "kerberos-keytab", envString("KERBEROS_KEYTAB", ""), "Kerberos keytab path")
	flags.StringVar(&opts.kerberosConfig, "kerberos-config", envString("KERBEROS_CONFIG", ""), "krb5.conf path")
	flags.StringVar(&opts.kerberosCCache, "kerberos-ccache", envString("KERBEROS_CCACHE", ""), "Kerberos credential cache path")
	flags.StringVar(&opts.kerberosSPN, "kerberos-spn", envString("KERBEROS_SPN", ""), "Service principal, defaults to ldap/<host>")

	flags.StringVar(&opts.logLevel, "log-level", envString("LOG_LEVEL", DefaultLogLevel), "Log level (one of panic, fatal, error, warn, info or debug)")
	flags.BoolVar(&opts.logTimestamp, "log-timestamp", true, "Prefix each log line with timestamp")

	cmd.AddCommand(commandBind(opts))
	cmd.AddCommand(commandSearch(opts))
	cmd.AddCommand(commandPasswd(opts))
	cmd.AddCommand(commandReplace(opts))

	return cmd
}

func (o *options) config() *ldapclient.Config {
	return &ldapclient.Config{
		Host:               o.host,
		Port:               o.port,
		UserDN:             o.userDN,
		AdminDN:            o.adminDN,
		AdminPassword:      o.adminPassword,
		ReadAttributes:     o.readAttributes,
		Timeout:            o.timeout,
		UseTLS:             o.useTLS,
		StartTLS:           o.startTLS,
		InsecureSkipVerify: o.skipTLSVerify,
		DNPolicy:           ldapclient.UserDNPolicy(o.dnPolicy),

		KerberosRealm:    o.kerberosRealm,
		KerberosUsername: o.kerberosUsername,
		KerberosPassword: os.Getenv(withEnvBase("KERBEROS_PASSWORD")),
		KerberosKeytab:   o.kerberosKeytab,
		KerberosConfig:   o.kerberosConfig,
		KerberosCCache:   o.kerberosCCache,
		KerberosSPN:      o.kerberosSPN,
	}
}

// connect opens a client for the command. The caller must Close it.
func (o *options) connect(cmd *cobra.Command) (*ldapclient.Client, error) {
	logger, err := newLogger(!o.logTimestamp, o.logLevel)
	if err != nil {
		return nil, err
	}

	clientOptions := append([]ldapclient.Option{
		ldapclient.WithLogger(&clientLogger{logger: logger}),
	}, o.clientOptions...)

	return ldapclient.NewClient(cmd.Context(), o.config(), clientOptions...)
}

// connectAsService opens a client and, with --bind-admin, binds it as the
// service account.
func (o *options) connectAsService(cmd *cobra.Command) (*ldapclient.Client, error) {
	client, err := o.connect(cmd)
	if err != nil {
		return nil, err
	}

	if o.bindAdmin && !client.BindServiceAccount(cmd.Context()) {
		_ = client.Close()
		return nil, fmt.Errorf("service account bind rejected: %w", errOperationFailed)
	}

	return client, nil
}

func withEnvBase(name string) string {
	return DefaultEnvBase + name
}

func envString(name, defaultValue string) string {
	if v := os.Getenv(withEnvBase(name)); v != "" {
		return v
	}
	return defaultValue
}

func envInt(name string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(withEnvBase(name))); err == nil {
		return v
	}
	return defaultValue
}

func envBool(name string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(withEnvBase(name))); err == nil {
		return v
	}
	return defaultValue
}

// envSeconds reads a whole number of seconds, as the provider does.
func envSeconds(name string, defaultValue time.Duration) time.Duration {
	if v, err := strconv.Atoi(os.Getenv(withEnvBase(name))); err == nil && v > 0 {
		return time.Duration(v) * time.Second
	}
	return defaultValue
}

func envList(name string) []string {
	var values []string
	for _, v := range strings.Split(os.Getenv(withEnvBase(name)), ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
