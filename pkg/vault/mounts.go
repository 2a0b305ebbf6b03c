// pkg/vault/mounts.go

package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kvpath"
	"github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

const mountsPath = "sys/mounts"

// EngineMount is one KV engine instance.
type EngineMount struct {
	Path    string               `json:"path" yaml:"path"`
	Type    string               `json:"type" yaml:"type"`
	Version kvpath.EngineVersion `json:"version" yaml:"version"`
}

// mountVersion reports whether a mount is a KV engine and which version.
func mountVersion(m *api.MountOutput) (kvpath.EngineVersion, bool) {
	if m == nil {
		return 0, false
	}
	switch m.Type {
	case "kv-v2":
		return kvpath.V2, true
	case "kv":
		if m.Options["version"] == "2" {
			return kvpath.V2, true
		}
		return kvpath.V1, true
	default:
		return 0, false
	}
}

// DiscoverMounts returns the KV engines on the server, sorted by path.
func (l *Lister) DiscoverMounts(ctx context.Context) ([]EngineMount, error) {
	resp, err := l.transport.Read(ctx, mountsPath, nil)
	if err != nil {
		l.log.Ctx(ctx).Error("Failed to discover mounts", zap.Error(err))
		return nil, kv_err.Transport(mountsPath, 0, "failed to discover mounts", err)
	}
	if !resp.OK() {
		return nil, kv_err.Transport(mountsPath, resp.StatusCode,
			fmt.Sprintf("failed to discover mounts: %d", resp.StatusCode), nil)
	}

	raw, err := decodeMounts(resp.Body)
	if err != nil {
		return nil, kv_err.Malformed(mountsPath, err)
	}

	mounts := make([]EngineMount, 0, len(raw))
	for path, m := range raw {
		version, ok := mountVersion(m)
		if !ok {
			continue
		}
		mounts = append(mounts, EngineMount{
			Path:    strings.Trim(path, "/"),
			Type:    m.Type,
			Version: version,
		})
	}
	sort.Slice(mounts, func(i, j int) bool { return mounts[i].Path < mounts[j].Path })

	l.log.Ctx(ctx).Debug("Discovered KV mounts", zap.Int("count", len(mounts)))
	return mounts, nil
}

// decodeMounts accepts both the "data"-wrapped body and the legacy body
// where mounts sit at the top level next to request metadata.
func decodeMounts(body []byte) (map[string]*api.MountOutput, error) {
	var wrapped struct {
		Data map[string]*api.MountOutput `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, err
	}
	out := make(map[string]*api.MountOutput)
	for k, v := range top {
		if !strings.HasSuffix(k, "/") {
			continue
		}
		var m api.MountOutput
		if err := json.Unmarshal(v, &m); err != nil {
			return nil, fmt.Errorf("mount %s: %w", k, err)
		}
		out[k] = &m
	}
	return out, nil
}

// ResolveMount finds the KV engine that owns path by longest prefix.
func (l *Lister) ResolveMount(ctx context.Context, path string) (EngineMount, error) {
	mounts, err := l.DiscoverMounts(ctx)
	if err != nil {
		return EngineMount{}, err
	}
	clean := strings.Trim(path, "/")
	best := -1
	for i, m := range mounts {
		if clean == m.Path || strings.HasPrefix(clean, m.Path+"/") {
			if best < 0 || len(m.Path) > len(mounts[best].Path) {
				best = i
			}
		}
	}
	if best < 0 {
		return EngineMount{}, kv_err.NewExpectedError(
			fmt.Errorf("no KV engine is mounted at or above %q", path))
	}
	return mounts[best], nil
}
