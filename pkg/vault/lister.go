// pkg/vault/lister.go

package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/config"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kvpath"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SecretRef is one leaf found while listing.
type SecretRef struct {
	Path  string `json:"path" yaml:"path"`
	IsKV2 bool   `json:"isKV2" yaml:"isKV2"`
}

// MountListing groups the secrets found under one engine.
type MountListing struct {
	Mount   string      `json:"mount" yaml:"mount"`
	Type    string      `json:"type" yaml:"type"`
	Secrets []SecretRef `json:"secrets" yaml:"secrets"`
}

var listQuery = url.Values{"list": []string{"true"}}

// Lister walks KV engines and flattens their folder trees.
type Lister struct {
	transport   Transport
	log         *otelzap.Logger
	maxDepth    int
	concurrency int
}

// ListerOption customises a Lister.
type ListerOption func(*Lister)

// WithMaxDepth bounds folder recursion. Values below 1 keep the default.
func WithMaxDepth(n int) ListerOption {
	return func(l *Lister) {
		if n > 0 {
			l.maxDepth = n
		}
	}
}

// WithConcurrency bounds how many mounts ListAllMounts walks at once.
func WithConcurrency(n int) ListerOption {
	return func(l *Lister) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

func NewLister(t Transport, log *otelzap.Logger, opts ...ListerOption) *Lister {
	l := &Lister{
		transport:   t,
		log:         log,
		maxDepth:    config.DefaultMaxListDepth,
		concurrency: config.DefaultListConcurrency,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// List returns every secret under mount in server order, folders expanded
// in place. A failure listing the mount root is returned; failures deeper
// in the tree are logged and that branch is skipped.
func (l *Lister) List(ctx context.Context, mount string, version kvpath.EngineVersion) ([]SecretRef, error) {
	ctx, span := tracer.Start(ctx, "vault.list", trace.WithAttributes(
		attribute.String("vault.mount", mount),
		attribute.String("vault.kv_version", version.Label()),
	))
	defer span.End()

	mount = strings.Trim(mount, "/")
	w := &walker{
		lister:  l,
		mount:   mount,
		version: version,
		visited: make(map[string]struct{}),
		out:     []SecretRef{},
	}
	if err := w.walk(ctx, "", 0); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("vault.secret_count", len(w.out)))
	return w.out, nil
}

type walker struct {
	lister  *Lister
	mount   string
	version kvpath.EngineVersion
	visited map[string]struct{}
	out     []SecretRef
}

func (w *walker) walk(ctx context.Context, folder string, depth int) error {
	log := w.lister.log.Ctx(ctx)
	target := kvpath.ListPath(w.mount, folder, w.version)
	if _, seen := w.visited[target]; seen {
		log.Warn("Skipping folder already listed", zap.String("mount", w.mount), zap.String("folder", folder))
		return nil
	}
	w.visited[target] = struct{}{}

	keys, err := w.lister.listKeys(ctx, target)
	if err != nil {
		if depth == 0 {
			return err
		}
		log.Warn("Failed to list folder, skipping",
			zap.String("mount", w.mount), zap.String("folder", folder), zap.Error(err))
		return nil
	}

	for _, key := range keys {
		if key == "" || key == "/" {
			continue
		}
		if strings.HasSuffix(key, "/") {
			if depth+1 >= w.lister.maxDepth {
				log.Warn("Maximum list depth reached, skipping folder",
					zap.String("mount", w.mount), zap.String("folder", folder+key), zap.Int("max_depth", w.lister.maxDepth))
				continue
			}
			// Returned errors only come from the root call.
			_ = w.walk(ctx, folder+key, depth+1)
			continue
		}
		w.out = append(w.out, SecretRef{
			Path:  w.mount + "/" + folder + key,
			IsKV2: w.version == kvpath.V2,
		})
	}
	return nil
}

// listKeys issues one LIST. A 404 is an empty folder.
func (l *Lister) listKeys(ctx context.Context, path string) ([]string, error) {
	resp, err := l.transport.Read(ctx, path, listQuery)
	if err != nil {
		return nil, kv_err.Transport(path, 0, "failed to list secrets", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if !resp.OK() {
		return nil, kv_err.Transport(path, resp.StatusCode, fmt.Sprintf("failed to list secrets: %d", resp.StatusCode), nil)
	}

	var lr listResponse
	if err := json.Unmarshal(resp.Body, &lr); err != nil {
		return nil, kv_err.Malformed(path, err)
	}
	if lr.Data == nil {
		return nil, nil
	}
	return lr.Data.Keys, nil
}

// ListAllMounts discovers KV engines and lists each one. Mounts that fail
// are logged and left out; results are ordered by mount path.
func (l *Lister) ListAllMounts(ctx context.Context) ([]MountListing, error) {
	ctx, span := tracer.Start(ctx, "vault.list_all")
	defer span.End()

	mounts, err := l.DiscoverMounts(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*MountListing, len(mounts))
	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for i, m := range mounts {
		g.Go(func() error {
			secrets, err := l.List(ctx, m.Path, m.Version)
			if err != nil {
				l.log.Ctx(ctx).Error("Failed to list mount",
					zap.String("mount", m.Path), zap.String("type", m.Version.Label()), zap.Error(err))
				return nil
			}
			results[i] = &MountListing{Mount: m.Path, Type: m.Version.Label(), Secrets: secrets}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]MountListing, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	span.SetAttributes(attribute.Int("vault.mount_count", len(out)))
	return out, nil
}
