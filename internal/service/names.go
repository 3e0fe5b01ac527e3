package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/model"
)

// DefaultNameTTL is how long resolved display names stay cached.
const DefaultNameTTL = 10 * time.Minute

// ContextNamer resolves the display name of a chat context.
type ContextNamer interface {
	Name(ctx context.Context, kind model.ContextKind, contextID string) string
}

// NameResolverOptions groups dependencies for NameResolver.
type NameResolverOptions struct {
	Directory core.ChatDirectory   // Required
	Cache     core.CacheRepository // Optional
	TTL       time.Duration
	Logger    *slog.Logger
}

// NameResolver looks up context display names through the chat directory,
// caching hits and collapsing concurrent lookups of the same context.
type NameResolver struct {
	dir    core.ChatDirectory
	cache  core.CacheRepository
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

var _ ContextNamer = (*NameResolver)(nil)

// NewNameResolver constructs a NameResolver.
func NewNameResolver(opts NameResolverOptions) (*NameResolver, error) {
	if opts.Directory == nil {
		return nil, errors.New("chat directory is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultNameTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &NameResolver{
		dir:    opts.Directory,
		cache:  opts.Cache,
		ttl:    ttl,
		logger: logger.With("component", "name_resolver"),
	}, nil
}

// Name returns the display name, or "" when it cannot be resolved.
func (r *NameResolver) Name(ctx context.Context, kind model.ContextKind, contextID string) string {
	if contextID == "" {
		return ""
	}
	key := "name:" + string(kind) + ":" + contextID

	if r.cache != nil {
		if b, err := r.cache.Get(ctx, key); err != nil {
			r.logger.DebugContext(ctx, "name cache read failed", "key", key, "error", err)
		} else if b != nil {
			return string(b)
		}
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		name, err := r.lookup(ctx, kind, contextID)
		if err != nil {
			return "", err
		}
		if r.cache != nil && name != "" {
			if err := r.cache.Set(ctx, key, []byte(name), r.ttl); err != nil {
				r.logger.DebugContext(ctx, "name cache write failed", "key", key, "error", err)
			}
		}
		return name, nil
	})
	if err != nil {
		r.logger.WarnContext(ctx, "display name lookup failed",
			"context_kind", kind,
			"context_id", contextID,
			"error", err,
		)
		return ""
	}
	name, _ := v.(string)
	return name
}

func (r *NameResolver) lookup(ctx context.Context, kind model.ContextKind, id string) (string, error) {
	if kind == model.ContextShared {
		return r.dir.GroupName(ctx, id)
	}
	return r.dir.UserName(ctx, id)
}
