package etcd

import (
	"Friday/backend/go/pkg/logger"
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Registrar 把服务实例注册到 etcd，键为 "/<service>/<addr>"，随租约一起过期。
type Registrar struct {
	cli *clientv3.Client
	log *logger.Logger
}

// NewRegistrar 连接 etcd。
func NewRegistrar(endpoints []string, log *logger.Logger) (*Registrar, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd: %w", err)
	}
	return &Registrar{cli: cli, log: log}, nil
}

// ServiceKey 返回实例在 etcd 中的键。
func ServiceKey(serviceName, addr string) string {
	return "/" + serviceName + "/" + addr
}

// Register 以 ttl 秒的租约写入实例地址并持续续约。
// 返回的 deregister 会停止续约并删除键，可以重复调用。
func (r *Registrar) Register(ctx context.Context, serviceName, addr string, ttl int64) (deregister func(), err error) {
	lease, err := r.cli.Grant(ctx, ttl)
	if err != nil {
		return nil, fmt.Errorf("grant lease: %w", err)
	}

	key := ServiceKey(serviceName, addr)
	if _, err = r.cli.Put(ctx, key, addr, clientv3.WithLease(lease.ID)); err != nil {
		return nil, fmt.Errorf("put %s: %w", key, err)
	}

	keepCtx, cancel := context.WithCancel(context.Background())
	keepAliveCh, err := r.cli.KeepAlive(keepCtx, lease.ID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("keep alive: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range keepAliveCh {
		}
		// 通道关闭：被取消，或者租约已经丢失
		if keepCtx.Err() == nil {
			r.log.WithField("key", key).Warn("etcd lease lost, service is no longer registered")
		}
	}()

	r.log.WithPayload(map[string]interface{}{"key": key, "ttl": ttl}).Info("service registered in etcd")

	var stopped bool
	return func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		<-done
		revokeCtx, revokeCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer revokeCancel()
		if _, err := r.cli.Revoke(revokeCtx, lease.ID); err != nil {
			r.log.WithError(err).Warn("revoke etcd lease failed")
		}
	}, nil
}

// HealthCheck 检查 etcd 是否可达。
func (r *Registrar) HealthCheck(ctx context.Context) error {
	_, err := r.cli.Get(ctx, "health", clientv3.WithCountOnly())
	return err
}

// Close 关闭 etcd 客户端。
func (r *Registrar) Close() error {
	return r.cli.Close()
}
