// Package ice turns configured STUN/TURN entries into the server list
// handed to browsers.
package ice

import (
	"errors"
	"fmt"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"

	"campus/internal/config"
)

var ErrMissingCredentials = errors.New("turn server requires username and credential")

// Servers parses every url and rejects TURN entries without credentials.
func Servers(entries []config.ICEServer) ([]webrtc.ICEServer, error) {
	out := make([]webrtc.ICEServer, 0, len(entries))
	for i, e := range entries {
		for _, raw := range e.URLs {
			uri, err := stun.ParseURI(raw)
			if err != nil {
				return nil, fmt.Errorf("ice server %d: invalid url %q: %w", i, raw, err)
			}
			if isTURN(uri) && (e.Username == "" || e.Credential == "") {
				return nil, fmt.Errorf("ice server %d (%s): %w", i, raw, ErrMissingCredentials)
			}
		}

		s := webrtc.ICEServer{URLs: append([]string(nil), e.URLs...)}
		if e.Username != "" {
			s.Username = e.Username
			s.Credential = e.Credential
		}
		out = append(out, s)
	}
	return out, nil
}

func isTURN(uri *stun.URI) bool {
	return uri.Scheme == stun.SchemeTypeTURN || uri.Scheme == stun.SchemeTypeTURNS
}
