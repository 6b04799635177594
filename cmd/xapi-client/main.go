// Command xapi-client connects to a device's xAPI and runs a request.
//
// Password can be provided via:
//   - --password flag (least secure, visible in process list)
//   - XAPI_PASSWORD environment variable (recommended)
//   - the URL user-info or a profile
//   - stdin prompt (if none of the above is set and stdin is a terminal)
//
// Usage:
//
//	xapi-client [url] [flags]
//
// Examples:
//
//	# Read a status value
//	export XAPI_PASSWORD='secret'
//	xapi-client wss://admin@codec.example.com --get Status/Audio/Volume
//
//	# Run a command with JSON parameters
//	xapi-client codec.example.com --method xCommand/Audio/Volume/Set --params '{"Level":40}'
//
//	# Stream feedback until interrupted, exposing metrics
//	xapi-client --profile lab.yaml --listen Status/Call --metrics-addr :9090
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// passwordEnv is the environment variable consulted for the password.
const passwordEnv = "XAPI_PASSWORD"

type flags struct {
	host     string
	port     int
	protocol string
	username string
	password string
	profile  string

	logLevel  string
	logFormat string
	logFile   string
	audit     bool

	insecure   bool
	ssh        bool
	knownHosts string
	sshCommand string
	timeout    time.Duration

	method      string
	params      string
	get         string
	listen      []string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "xapi-client [url]",
		Short: "Connect to a device's xAPI and run a request",
		Long: `Connect to a device's xAPI over WebSocket (or SSH with --ssh) and run a
single request, or subscribe to feedback and print it until interrupted.

The connection target is resolved from, in increasing precedence:
  built-in defaults (wss:, user admin, log level warn),
  the --profile file,
  the URL argument,
  explicit flags.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.host, "host", "", "Device hostname or IP address")
	fl.IntVar(&f.port, "port", 0, "Device port (default: transport default)")
	fl.StringVar(&f.protocol, "protocol", "", "Protocol: ws:, wss: or ssh:")
	fl.StringVarP(&f.username, "user", "u", "", "Username (default: admin)")
	fl.StringVar(&f.password, "password", "", "Password (use "+passwordEnv+" env var instead)")
	fl.StringVar(&f.profile, "profile", "", "YAML profile supplying connection defaults")

	fl.StringVar(&f.logLevel, "loglevel", "", "Log level: trace, debug, info, warn, error, silent")
	fl.StringVar(&f.logFormat, "log-format", "text", "Log format: text or json")
	fl.StringVar(&f.logFile, "log-file", "", "Write logs to a rotated file instead of stderr")
	fl.BoolVar(&f.audit, "audit", false, "Emit connection audit events")

	fl.BoolVar(&f.insecure, "insecure", false, "Skip TLS certificate verification")
	fl.BoolVar(&f.ssh, "ssh", false, "Enable the ssh: protocol")
	fl.StringVar(&f.knownHosts, "known-hosts", "", "known_hosts file for ssh: (default: ~/.ssh/known_hosts)")
	fl.StringVar(&f.sshCommand, "ssh-command", "", "Remote command for ssh: (default: tsh)")
	fl.DurationVar(&f.timeout, "timeout", 30*time.Second, "Connect and request timeout")

	fl.StringVar(&f.method, "method", "", "JSON-RPC method to execute")
	fl.StringVar(&f.params, "params", "", "JSON parameters for --method")
	fl.StringVar(&f.get, "get", "", "Path to read, e.g. Status/Audio/Volume")
	fl.StringArrayVar(&f.listen, "listen", nil, "Subscribe to a feedback path (repeatable)")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while listening")

	cmd.MarkFlagsMutuallyExclusive("method", "get")

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
