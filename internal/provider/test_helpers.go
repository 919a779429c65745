package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-testing/helper/resource"
	"github.com/hashicorp/terraform-plugin-testing/terraform"

	"github.com/isometry/terraform-provider-ldap/internal/ldap"
)

// Test environment configuration constants.
const (
	// Environment variables for test configuration.
	EnvTestHost          = "LDAP_TEST_HOST"
	EnvTestPort          = "LDAP_TEST_PORT"
	EnvTestUserDN        = "LDAP_TEST_USER_DN"
	EnvTestAdminDN       = "LDAP_TEST_ADMIN_DN"
	EnvTestAdminPassword = "LDAP_TEST_ADMIN_PASSWORD"
	EnvTestUserRDN       = "LDAP_TEST_USER_RDN"
	EnvTestStartTLS      = "LDAP_TEST_START_TLS"

	// Default values for testing.
	DefaultTestHost   = "localhost"
	DefaultTestUserDN = "ou=people,dc=example,dc=org"

	// TestPasswordPrefix marks passwords generated by acceptance tests.
	TestPasswordPrefix = "tf-test-"
)

// TestConfig holds common test configuration.
type TestConfig struct {
	Host          string
	Port          int
	UserDN        string
	AdminDN       string
	AdminPassword string
	UserRDN       string
	StartTLS      bool
}

// GetTestConfig returns the test configuration from environment variables.
func GetTestConfig() *TestConfig {
	config := &TestConfig{
		Host:          getEnvWithDefault(EnvTestHost, DefaultTestHost),
		Port:          ldap.DefaultPort,
		UserDN:        getEnvWithDefault(EnvTestUserDN, DefaultTestUserDN),
		AdminDN:       os.Getenv(EnvTestAdminDN),
		AdminPassword: os.Getenv(EnvTestAdminPassword),
		UserRDN:       os.Getenv(EnvTestUserRDN),
	}

	if port, err := strconv.Atoi(os.Getenv(EnvTestPort)); err == nil {
		config.Port = port
	}
	config.StartTLS, _ = strconv.ParseBool(os.Getenv(EnvTestStartTLS))

	return config
}

// ClientConfig converts the test configuration to a client configuration.
func (c *TestConfig) ClientConfig() *ldap.Config {
	cfg := ldap.DefaultConfig()
	cfg.Host = c.Host
	cfg.Port = c.Port
	cfg.UserDN = c.UserDN
	cfg.AdminDN = c.AdminDN
	cfg.AdminPassword = c.AdminPassword
	cfg.StartTLS = c.StartTLS
	return cfg
}

// IsAccTest returns true if acceptance tests should run.
func IsAccTest() bool {
	return os.Getenv("TF_ACC") != ""
}

// SkipIfNotAccTest skips the test if TF_ACC is not set.
func SkipIfNotAccTest(t *testing.T) {
	if !IsAccTest() {
		t.Skip("Skipping acceptance test - set TF_ACC=1 to run")
	}
}

// testAccPreCheckWithConfig validates the acceptance test environment.
func testAccPreCheckWithConfig(t *testing.T) *TestConfig {
	SkipIfNotAccTest(t)

	config := GetTestConfig()

	if config.AdminDN == "" || config.AdminPassword == "" {
		t.Skipf("Skipping test: %s and %s must be set", EnvTestAdminDN, EnvTestAdminPassword)
	}

	if config.UserRDN == "" {
		t.Skipf("Skipping test: %s must be set to an entry beneath %s", EnvTestUserRDN, config.UserDN)
	}

	return config
}

// TestProviderConfig generates provider configuration for tests.
func TestProviderConfig() string {
	config := GetTestConfig()

	var b strings.Builder
	b.WriteString("provider \"ldap\" {\n")
	fmt.Fprintf(&b, "  host           = %q\n", config.Host)
	fmt.Fprintf(&b, "  port           = %d\n", config.Port)
	fmt.Fprintf(&b, "  user_dn        = %q\n", config.UserDN)
	fmt.Fprintf(&b, "  admin_dn       = %q\n", config.AdminDN)
	fmt.Fprintf(&b, "  admin_password = %q\n", config.AdminPassword)
	if config.StartTLS {
		b.WriteString("  start_tls      = true\n")
	}
	b.WriteString("  read_attributes = [\"cn\", \"sn\", \"description\"]\n")
	b.WriteString("}\n")

	return b.String()
}

// GenerateTestName generates a unique test value with timestamp.
func GenerateTestName(prefix string) string {
	timestamp := time.Now().Format("20060102-150405")
	shortUUID := uuid.New().String()[:8]
	return fmt.Sprintf("%s%s-%s", prefix, timestamp, shortUUID)
}

// withTestClient opens a client against the acceptance test directory.
func withTestClient(fn func(ctx context.Context, client *ldap.Client) error) error {
	ctx := context.Background()

	client, err := ldap.NewClient(ctx, GetTestConfig().ClientConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to test directory: %w", err)
	}
	defer client.Close()

	return fn(ctx, client)
}

// TestCheckPasswordBinds verifies that rdn can bind with password.
func TestCheckPasswordBinds(rdn, password string) resource.TestCheckFunc {
	return func(_ *terraform.State) error {
		return withTestClient(func(ctx context.Context, client *ldap.Client) error {
			if !client.Bind(ctx, rdn, password, true) {
				return fmt.Errorf("bind as %s with the managed password failed", client.UserDN(rdn))
			}
			return nil
		})
	}
}

// TestCheckEntryAttribute verifies the first value of attribute on the
// first entry matching filter.
func TestCheckEntryAttribute(filter, attribute, want string) resource.TestCheckFunc {
	return func(_ *terraform.State) error {
		return withTestClient(func(ctx context.Context, client *ldap.Client) error {
			if !client.BindWithAdmin(ctx) {
				return fmt.Errorf("admin bind failed")
			}

			client.Search(ctx, filter)
			got, ok := client.GetAttribute(attribute)
			if !ok {
				return fmt.Errorf("attribute %s not found on entry matching (%s)", attribute, filter)
			}
			if got != want {
				return fmt.Errorf("attribute %s = %q, want %q", attribute, got, want)
			}
			return nil
		})
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
