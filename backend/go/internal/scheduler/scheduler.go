package scheduler

import (
	"Friday/backend/go/internal/config"
	"Friday/backend/go/internal/llm"
	"Friday/backend/go/internal/tasks"
	"Friday/backend/go/pkg/logger"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Scheduler 每天在固定的本地时间为所有订阅者生成并发送报告。
//
// 定时循环只负责判断是否到点，到点后把触发时间交给唯一的工作 goroutine；
// 上一次生成还未结束时本次触发会被丢弃，因此同一触发不会重叠执行。
type Scheduler struct {
	registry *tasks.Registry
	oracle   llm.Completer
	sender   Sender
	log      *logger.Logger
	now      func() time.Time
	loc      *time.Location
	hour     int
	minute   int
	poll     time.Duration

	subMu       sync.RWMutex
	subscribers map[string]struct{}

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option 配置 Scheduler。
type Option func(*Scheduler)

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithPollInterval 设置轮询间隔，超过 60 秒时按 60 秒处理。
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.poll = d }
}

// WithLogger 设置日志记录器。
func WithLogger(l *logger.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New 创建调度器，并加入配置中预置的订阅者。
// 参数:
//   - registry: 用于创建记账和待办处理器
//   - oracle: 生成问候语，可以为 nil
//   - sender: 按平台投递报告
//   - cfg: 触发时间、轮询间隔和时区
func New(registry *tasks.Registry, oracle llm.Completer, sender Sender, cfg config.SchedulerConfig, opts ...Option) (*Scheduler, error) {
	hour, minute, err := cfg.ParseDailyTime()
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		registry:    registry,
		oracle:      oracle,
		sender:      sender,
		log:         logger.New("scheduler"),
		now:         time.Now,
		loc:         cfg.Location(),
		hour:        hour,
		minute:      minute,
		poll:        cfg.PollInterval(),
		subscribers: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.poll <= 0 || s.poll > time.Minute {
		s.poll = time.Minute
	}

	for _, key := range cfg.Subscribers {
		platform, userID, ok := splitKey(key)
		if !ok {
			return nil, fmt.Errorf("invalid subscriber %q, want platform:userId", key)
		}
		s.AddSubscriber(userID, platform)
	}
	return s, nil
}

func subscriberKey(platform, userID string) string {
	return platform + ":" + userID
}

func splitKey(key string) (platform, userID string, ok bool) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// AddSubscriber 订阅每日报告。
func (s *Scheduler) AddSubscriber(userID, platform string) {
	s.subMu.Lock()
	s.subscribers[subscriberKey(platform, userID)] = struct{}{}
	s.subMu.Unlock()
	s.log.WithUser(platform, userID).Info("daily report subscriber added")
}

// RemoveSubscriber 取消订阅，返回之前是否已订阅。
func (s *Scheduler) RemoveSubscriber(userID, platform string) bool {
	key := subscriberKey(platform, userID)
	s.subMu.Lock()
	_, ok := s.subscribers[key]
	delete(s.subscribers, key)
	s.subMu.Unlock()
	if ok {
		s.log.WithUser(platform, userID).Info("daily report subscriber removed")
	}
	return ok
}

// IsSubscribed 返回用户是否订阅了每日报告。
func (s *Scheduler) IsSubscribed(userID, platform string) bool {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	_, ok := s.subscribers[subscriberKey(platform, userID)]
	return ok
}

// Subscribers 返回排序后的 "platform:userId" 列表。
func (s *Scheduler) Subscribers() []string {
	s.subMu.RLock()
	out := make([]string, 0, len(s.subscribers))
	for k := range s.subscribers {
		out = append(out, k)
	}
	s.subMu.RUnlock()
	sort.Strings(out)
	return out
}

// Running 返回调度循环是否在运行。
func (s *Scheduler) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

// Start 启动定时循环，已在运行时不做任何事。
func (s *Scheduler) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	firings := make(chan time.Time, 1)
	s.wg.Add(2)
	go s.timerLoop(s.stopCh, firings)
	go s.worker(ctx, firings)

	s.log.WithPayload(map[string]interface{}{
		"daily_time": fmt.Sprintf("%02d:%02d", s.hour, s.minute),
		"timezone":   s.loc.String(),
		"poll":       s.poll.String(),
	}).Info("scheduler started")
}

// Stop 停止定时循环，取消正在进行的生成和投递并等待其返回。可以重复调用，也可以在其他 goroutine 中调用。
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.cancel()
	s.runMu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// NextRun 返回 after 之后的下一次触发时间。
func (s *Scheduler) NextRun(after time.Time) time.Time {
	local := after.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) timerLoop(stop <-chan struct{}, firings chan<- time.Time) {
	defer s.wg.Done()
	defer close(firings)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	next := s.NextRun(s.now())
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := s.now()
			if now.Before(next) {
				continue
			}
			next = s.NextRun(now)
			select {
			case firings <- now:
			default:
				s.log.Warn("previous daily report run still in progress, skipping this firing")
			}
		}
	}
}

func (s *Scheduler) worker(ctx context.Context, firings <-chan time.Time) {
	defer s.wg.Done()
	for at := range firings {
		if ctx.Err() != nil {
			return
		}
		s.runDaily(ctx, at)
	}
}

// TestDailyPush 立即执行一次每日推送，返回成功和失败的订阅者数量。
func (s *Scheduler) TestDailyPush(ctx context.Context) (sent, failed int) {
	return s.runDaily(ctx, s.now())
}

// runDaily 为每个订阅者生成并发送报告。单个订阅者失败只记录日志，不影响其他订阅者，也不会在本次触发内重试。
func (s *Scheduler) runDaily(ctx context.Context, at time.Time) (sent, failed int) {
	subs := s.Subscribers()
	s.log.WithField("subscribers", len(subs)).Info("daily report run started")

	for _, key := range subs {
		if ctx.Err() != nil {
			s.log.WithError(ctx.Err()).Warn("daily report run cancelled")
			break
		}
		platform, userID, ok := splitKey(key)
		if !ok {
			continue
		}
		if err := s.deliver(ctx, platform, userID, at); err != nil {
			failed++
			s.log.WithUser(platform, userID).WithError(err).Error("daily report delivery failed")
			continue
		}
		sent++
	}

	s.log.WithPayload(map[string]interface{}{"sent": sent, "failed": failed}).Info("daily report run finished")
	return sent, failed
}

func (s *Scheduler) deliver(ctx context.Context, platform, userID string, at time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while sending report: %v", r)
		}
	}()
	if s.sender == nil {
		return fmt.Errorf("no sender configured")
	}
	report := s.BuildReport(ctx, at)
	return s.sender.Send(ctx, platform, userID, report)
}

// SendManualDailyReport 立即生成报告并返回内容，不经过定时器，也不发送。
func (s *Scheduler) SendManualDailyReport(ctx context.Context, platform, userID string) string {
	s.log.WithUser(platform, userID).Info("manual daily report requested")
	return s.BuildReport(ctx, s.now())
}
