package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/driveline/driveline/config"
)

const defaultPingTimeout = 5 * time.Second

// redisOptions folds the three deployment shapes into one UniversalOptions.
// A redis:// or rediss:// URI supplies address, credentials and TLS; a bare
// URI is taken as host:port. The returned label is safe to log.
func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	opts := &redis.UniversalOptions{Password: cfg.Password}

	if cfg.UseSentinel {
		if len(trimAll(cfg.SentinelNodes)) == 0 {
			return nil, "", errors.New("redis sentinel configuration requires at least one sentinel node")
		}
		opts.Addrs = trimAll(cfg.SentinelNodes)
		opts.MasterName = cfg.SentinelMasterName
		opts.SentinelPassword = cfg.SentinelPassword
		return opts, "sentinel:" + cfg.SentinelMasterName, nil
	}

	uri := strings.TrimSpace(cfg.URI)
	if strings.HasPrefix(uri, "redis://") || strings.HasPrefix(uri, "rediss://") {
		parsed, err := redis.ParseURL(uri)
		if err != nil {
			return nil, "", fmt.Errorf("parse redis url: %w", err)
		}
		opts.Addrs = []string{parsed.Addr}
		opts.Username = parsed.Username
		if parsed.Password != "" {
			opts.Password = parsed.Password
		}
		opts.DB = parsed.DB
		opts.TLSConfig = parsed.TLSConfig
	} else if uri != "" {
		opts.Addrs = []string{uri}
	}

	if cfg.UseCluster {
		if nodes := trimAll(cfg.ClusterNodes); len(nodes) > 0 {
			opts.Addrs = nodes
		}
		if len(opts.Addrs) == 0 {
			return nil, "", errors.New("redis cluster configuration requires at least one address")
		}
		opts.IsClusterMode = true
		opts.DB = 0
		return opts, "cluster:" + strings.Join(opts.Addrs, ","), nil
	}

	if len(opts.Addrs) == 0 {
		return nil, "", errors.New("redis direct configuration requires a URI")
	}
	return opts, opts.Addrs[0], nil
}

// ConnectRedis builds a single, sentinel or cluster client and pings it.
//
//nolint:ireturn // the concrete client depends on deployment shape.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	opts, label, err := redisOptions(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}
	client := redis.NewUniversalClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("ping redis: %w", err), client.Close())
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected", "addr", label)
	}
	return client, nil
}

func trimAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
