package options

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
)

// schemePattern matches strings that start with an explicit "scheme://".
var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://`)

// ParseURL parses a connection URL into a partial options record.
//
// The scheme maps to Protocol with its trailing colon ("wss://h" gives
// "wss:"), host and port map to Host and Port, user-info maps to Username
// and Password, and query values map to Params.
//
// A string without "scheme://" is read as a bare authority
// ("[user[:pass]@]host[:port]") and leaves Protocol unset, so a protocol from
// a lower layer is kept. An empty string yields an empty record.
func ParseURL(s string) (Options, error) {
	if s == "" {
		return Options{}, nil
	}

	raw := s
	hasScheme := schemePattern.MatchString(s)
	if !hasScheme {
		raw = "//" + s
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Options{}, &InvalidArgumentsError{Shape: "connect(string)", Reason: "malformed URL", Err: err}
	}

	var o Options
	if hasScheme {
		o.Protocol = u.Scheme + ":"
	}
	o.Host = u.Hostname()

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Options{}, &InvalidArgumentsError{
				Shape:  "connect(string)",
				Reason: "malformed URL",
				Err:    fmt.Errorf("invalid port %q", p),
			}
		}
		o.Port = port
	}

	if u.User != nil {
		o.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			o.Password = pw
		}
	}

	if q := u.Query(); len(q) > 0 {
		o.Params = make(map[string]string, len(q))
		for k, v := range q {
			if len(v) > 0 {
				o.Params[k] = v[0]
			}
		}
	}

	return o, nil
}
