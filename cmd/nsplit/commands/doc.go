// Package commands defines the nsplit CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - serve    Run the HTTP server (ledger API, auth, metrics)
//   - migrate  Apply pending database migrations
//
// Configuration comes from the environment (optionally a .env file) and is
// validated by the root command before any subcommand runs.
package commands
