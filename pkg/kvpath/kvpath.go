// pkg/kvpath/kvpath.go
//
// Path handling for KV secret engines. A logical path is "mount/rest";
// version 2 engines expect an extra "data" or "metadata" segment after the mount.

package kvpath

import (
	"fmt"
	"regexp"
	"strings"
)

// EngineVersion identifies the KV engine protocol.
type EngineVersion int

const (
	V1 EngineVersion = 1
	V2 EngineVersion = 2
)

// Label renders the version the way listings show it.
func (v EngineVersion) Label() string {
	if v == V2 {
		return "KV2"
	}
	return "KV1"
}

func (v EngineVersion) String() string { return v.Label() }

// Purpose selects the V2 path infix.
type Purpose int

const (
	Data Purpose = iota
	Metadata
)

func (p Purpose) infix() string {
	if p == Metadata {
		return "metadata"
	}
	return "data"
}

var (
	slashRuns    = regexp.MustCompile(`/{2,}`)
	secretPathRe = regexp.MustCompile(`^[a-zA-Z0-9_/-]+$`)
	secretKeyRe  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Normalize converts a logical path into the engine's HTTP path.
// The result never starts with "/" and never contains "//".
// A V2 path with no rest returns "mount/<infix>" without a trailing slash.
func Normalize(rawPath string, version EngineVersion, purpose Purpose) string {
	mount, rest := SplitMount(rawPath)
	var out string
	if version == V2 {
		out = mount + "/" + purpose.infix() + "/" + rest
		if rest == "" {
			out = strings.TrimSuffix(out, "/")
		}
	} else {
		out = mount + "/" + rest
	}
	return clean(out)
}

// NormalizeAt is Normalize for a known mount, which may span several
// segments ("team/kv"). rest is relative to the mount.
func NormalizeAt(mount, rest string, version EngineVersion, purpose Purpose) string {
	mount = strings.Trim(mount, "/")
	rest = strings.TrimLeft(rest, "/")
	if version != V2 {
		return Join(mount, rest)
	}
	out := mount + "/" + purpose.infix()
	if rest != "" {
		out += "/" + rest
	}
	return clean(out)
}

// Relative strips mount from a logical path. ok is false when path is not
// under mount.
func Relative(mount, path string) (rest string, ok bool) {
	mount = strings.Trim(mount, "/")
	path = strings.Trim(clean(path), "/")
	switch {
	case mount == "":
		return path, true
	case path == mount:
		return "", true
	case strings.HasPrefix(path, mount+"/"):
		return strings.TrimPrefix(path, mount+"/"), true
	}
	return "", false
}

// ListPath builds the path used for a LIST call on folder within mount.
// A trailing slash on folder is preserved.
func ListPath(mount, folder string, version EngineVersion) string {
	base := strings.Trim(mount, "/")
	if version == V2 {
		base += "/metadata"
	}
	if folder == "" {
		return clean(base)
	}
	return clean(base + "/" + folder)
}

// SplitMount splits rawPath at its first segment.
func SplitMount(rawPath string) (mount, rest string) {
	p := strings.TrimLeft(rawPath, "/")
	mount, rest, _ = strings.Cut(p, "/")
	return mount, rest
}

// Join glues a mount and a relative path with a single separator.
func Join(mount, rest string) string {
	if rest == "" {
		return clean(mount)
	}
	return clean(strings.TrimSuffix(mount, "/") + "/" + rest)
}

func clean(p string) string {
	p = slashRuns.ReplaceAllString(p, "/")
	return strings.TrimPrefix(p, "/")
}

// ValidateSecretPath checks a path entered by a user, relative to its engine.
func ValidateSecretPath(p string) error {
	switch {
	case strings.TrimSpace(p) == "":
		return fmt.Errorf("path cannot be empty")
	case strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/"):
		return fmt.Errorf("path cannot start or end with /")
	case !secretPathRe.MatchString(p):
		return fmt.Errorf("path can only contain letters, numbers, underscores, hyphens and forward slashes")
	}
	return nil
}

// ValidateSecretKey checks a field name inside a secret.
func ValidateSecretKey(k string) error {
	if strings.TrimSpace(k) == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if !secretKeyRe.MatchString(k) {
		return fmt.Errorf("key can only contain letters, numbers, underscores and hyphens")
	}
	return nil
}
