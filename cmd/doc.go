// Package cmd implements the polycall command line interface: a
// protocol server (serve), a connectivity probe (ping) and version
// information. Configuration can be supplied via command line flags or
// environment variables with the POLYCALL_ prefix.
package cmd
