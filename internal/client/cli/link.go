package cli

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	idPathRe = regexp.MustCompile(`^/([A-Za-z0-9]+)$`)

	errBadLink = errors.New("not a memo link")
)

// BuildShareLink returns <base>/<id>#<passcode>.
func BuildShareLink(base, id, passcode string) string {
	return strings.TrimRight(base, "/") + "/" + id + "#" + passcode
}

// ParseShareLink extracts the identifier and passcode from a share link. The
// fragment is either the bare passcode or "id=<id>&k=<passcode>". Either part
// may be missing from the result when the link does not carry it.
func ParseShareLink(link string) (id, passcode string, err error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", "", errBadLink
	}

	if m := idPathRe.FindStringSubmatch(u.Path); m != nil {
		id = m[1]
	}

	if frag := u.Fragment; frag != "" {
		if strings.Contains(frag, "=") {
			q, err := url.ParseQuery(frag)
			if err != nil {
				return "", "", errBadLink
			}
			if v := q.Get("id"); v != "" {
				id = v
			}
			passcode = q.Get("k")
		} else {
			passcode = frag
		}
	}

	if id == "" {
		return "", "", errBadLink
	}
	return id, passcode, nil
}
