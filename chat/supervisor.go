package chat

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg/metrics"
	"github.com/akinalp/oddsroom/storeclient"
)

// State, Supervisor'ın teslimat kanalı durumu.
type State string

const (
	StateConnecting      State = "CONNECTING"
	StateSubscribed      State = "SUBSCRIBED"
	StateError           State = "ERROR"
	StateTimedOut        State = "TIMED_OUT"
	StateFallbackPolling State = "FALLBACK_POLLING"
	StateClosed          State = "CLOSED"
)

// Varsayılan Supervisor ayarları.
const (
	DefaultFetchLimit           = 50
	DefaultSubscribeTimeout     = 5 * time.Second
	DefaultSafetyPollInterval   = 30 * time.Second
	DefaultFallbackPollInterval = 3 * time.Second
)

// ErrSupervisorClosed, kapatılmış veya zaten başlatılmış bir Supervisor'a Start çağrıldığında döner.
var ErrSupervisorClosed = errors.New("supervisor already started or closed")

// Options, oda başına client ayarları. Sıfır değerler varsayılanlarla doldurulur.
type Options struct {
	FetchLimit           int
	SubscribeTimeout     time.Duration
	SafetyPollInterval   time.Duration
	FallbackPollInterval time.Duration
	DedupeWindow         time.Duration
}

func (o Options) withDefaults() Options {
	if o.FetchLimit <= 0 {
		o.FetchLimit = DefaultFetchLimit
	}
	if o.SubscribeTimeout <= 0 {
		o.SubscribeTimeout = DefaultSubscribeTimeout
	}
	if o.SafetyPollInterval <= 0 {
		o.SafetyPollInterval = DefaultSafetyPollInterval
	}
	if o.FallbackPollInterval <= 0 {
		o.FallbackPollInterval = DefaultFallbackPollInterval
	}
	if o.DedupeWindow <= 0 {
		o.DedupeWindow = DefaultDedupeWindow
	}
	return o
}

// Source, Supervisor'ın okuma için kullandığı store alt kümesi.
type Source interface {
	FetchMessages(ctx context.Context, room models.RoomScope, limit int) ([]models.Message, error)
	Subscribe(ctx context.Context, room models.RoomScope) (storeclient.Subscription, error)
}

// Supervisor, tek odanın mesaj listesini sayfa yenilemeden canlı tutar.
//
// Durum akışı:
//
//	CONNECTING → SUBSCRIBED → (ERROR | TIMED_OUT) → FALLBACK_POLLING
//	CONNECTING → (ERROR | TIMED_OUT) → FALLBACK_POLLING
//	her durumdan → CLOSED
//
// SUBSCRIBED iken push'lar doğrudan Reconciler'a gider ve yavaş bir
// safety-net poll arka planda çalışır. FALLBACK_POLLING'de poll sıklaşır ve
// sayfa listenin bayat kısmının yerine geçer. Kanal hataları kullanıcıya
// yansıtılmaz, sadece loglanır ve fallback'i tetikler.
//
// Her oda için tek goroutine çalışır; Close o goroutine durana kadar bekler.
type Supervisor struct {
	room   models.RoomScope
	source Source
	rec    *Reconciler
	opts   Options

	mu      sync.Mutex
	state   State
	started bool
	onState func(from, to State)

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewSupervisor, constructor. Supervisor CONNECTING durumunda oluşur, Start ile çalışır.
func NewSupervisor(source Source, rec *Reconciler, opts Options) *Supervisor {
	return &Supervisor{
		room:   rec.Room(),
		source: source,
		rec:    rec,
		opts:   opts.withDefaults(),
		state:  StateConnecting,
		done:   make(chan struct{}),
	}
}

// OnStateChange, her geçişte fn'i çağırır. fn Supervisor goroutine'inde, lock dışında çalışır.
func (s *Supervisor) OnStateChange(fn func(from, to State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// State, güncel durum.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start, ilk fetch'i, aboneliği ve poll döngüsünü arka planda başlatır.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.state == StateClosed {
		return ErrSupervisorClosed
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	return nil
}

// Close, aboneliği ve tüm timer'ları kapatır, goroutine'in durmasını bekler
// ve CLOSED'a geçer. Idempotent'tir.
func (s *Supervisor) Close() {
	s.closeOnce.Do(func() {
		// CLOSED, started ile aynı lock altında yazılır; Start bundan sonra reddeder.
		s.mu.Lock()
		started := s.started
		cancel := s.cancel
		from := s.state
		s.state = StateClosed
		fn := s.onState
		s.mu.Unlock()

		if started {
			cancel()
			<-s.done
		}

		log.Printf("[supervisor] room=%s %s -> %s", s.room, from, StateClosed)
		metrics.SupervisorTransitions.WithLabelValues(string(StateClosed)).Inc()
		if fn != nil {
			fn(from, StateClosed)
		}
	})
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)

	if err := s.fetch(ctx, true); err != nil && ctx.Err() != nil {
		return
	}

	var (
		sub      storeclient.Subscription
		messages <-chan models.Message
		statuses <-chan storeclient.Status
	)
	closeSub := func() {
		if sub != nil {
			_ = sub.Close()
			sub, messages, statuses = nil, nil, nil
		}
	}
	defer closeSub()

	timeout := time.NewTimer(s.opts.SubscribeTimeout)
	defer timeout.Stop()
	poll := time.NewTicker(s.opts.SafetyPollInterval)
	defer poll.Stop()

	fallback := func(reason State) {
		closeSub()
		timeout.Stop()
		s.transition(reason)
		s.transition(StateFallbackPolling)
		poll.Reset(s.opts.FallbackPollInterval)
		_ = s.fetch(ctx, true)
	}

	var err error
	sub, err = s.source.Subscribe(ctx, s.room)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("[supervisor] room=%s subscribe failed: %v", s.room, err)
		fallback(StateError)
	} else {
		messages, statuses = sub.Messages(), sub.Status()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case st, ok := <-statuses:
			if !ok {
				statuses = nil
				if s.live() {
					log.Printf("[supervisor] room=%s status stream closed", s.room)
					fallback(StateError)
				}
				continue
			}
			switch st {
			case storeclient.StatusSubscribed:
				if s.State() == StateConnecting {
					timeout.Stop()
					s.transition(StateSubscribed)
					// İlk fetch ile abonelik arasında yazılanları yakala.
					_ = s.fetch(ctx, false)
				}
			case storeclient.StatusError, storeclient.StatusClosed:
				if s.live() {
					log.Printf("[supervisor] room=%s channel reported %s", s.room, st)
					fallback(StateError)
				}
			}

		case m, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			s.rec.Observe(m)

		case <-timeout.C:
			if s.State() == StateConnecting {
				log.Printf("[supervisor] room=%s no subscription confirmation within %s", s.room, s.opts.SubscribeTimeout)
				fallback(StateTimedOut)
			}

		case <-poll.C:
			_ = s.fetch(ctx, s.State() == StateFallbackPolling)
		}
	}
}

// live, push kanalının hâlâ birincil yol olduğu durumlar.
func (s *Supervisor) live() bool {
	st := s.State()
	return st == StateConnecting || st == StateSubscribed
}

// fetch, odanın son sayfasını okur ve Reconciler'a birleştirir.
func (s *Supervisor) fetch(ctx context.Context, replace bool) error {
	msgs, err := s.source.FetchMessages(ctx, s.room, s.opts.FetchLimit)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[supervisor] room=%s fetch failed: %v", s.room, err)
		}
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.rec.MergePoll(msgs, replace)
	return nil
}

// transition, durumu değiştirir. CLOSED'dan sonra hiçbir geçiş yapılmaz.
func (s *Supervisor) transition(to State) {
	s.mu.Lock()
	from := s.state
	if from == StateClosed || from == to {
		s.mu.Unlock()
		return
	}
	s.state = to
	fn := s.onState
	s.mu.Unlock()

	log.Printf("[supervisor] room=%s %s -> %s", s.room, from, to)
	metrics.SupervisorTransitions.WithLabelValues(string(to)).Inc()

	if fn != nil {
		fn(from, to)
	}
}
