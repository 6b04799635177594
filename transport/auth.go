package transport

import (
	"encoding/base64"
	"strings"
)

// AuthTokenPrefix marks the subprotocol that carries credentials.
const AuthTokenPrefix = "auth-"

// AuthToken derives the authorization token offered to the device during the
// WebSocket handshake: "auth-" followed by the unpadded base64url encoding of
// "username:password".
func AuthToken(username, password string) string {
	return AuthTokenPrefix + base64.RawURLEncoding.EncodeToString([]byte(username+":"+password))
}

// ParseAuthToken reverses [AuthToken]. It returns false if token is not an
// authorization token.
func ParseAuthToken(token string) (username, password string, ok bool) {
	enc, found := strings.CutPrefix(token, AuthTokenPrefix)
	if !found {
		return "", "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", "", false
	}
	username, password, ok = strings.Cut(string(raw), ":")
	return username, password, ok
}
