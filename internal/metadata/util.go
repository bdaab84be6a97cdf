package metadata

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

func hostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}
	return strings.ToLower(u.Hostname()), nil
}

// lastSegment returns the final non-empty path element of raw.
func lastSegment(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "" || seg == "." || seg == "/" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}
	return seg, nil
}
