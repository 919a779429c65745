// Command ldapctl runs single LDAP client operations from the command line,
// using the same client and configuration as the Terraform provider.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
