package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"fare-monitor/faults"
	"fare-monitor/queue/application"
	"fare-monitor/queue/domain"
	"fare-monitor/queue/infra"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

type Options struct {
	Limiter  domain.Limiter
	Slots    domain.SlotPool
	Sessions domain.SessionRegistry
	Stats    domain.StatsStore
	Retry    application.RetryPolicy

	// Pending é a capacidade da fila de admissão.
	Pending        int
	AcquireTimeout time.Duration
	// StatsTimeout limita cada gravação best-effort de estatística.
	StatsTimeout time.Duration
	// StatsBuffer é quantos eventos esperam o gravador; cheio, o evento é descartado.
	StatsBuffer int
}

// Queue é o serviço de admissão. Crie uma vez no início do processo e injete
// onde for preciso; é seguro para uso concorrente.
type Queue struct {
	limiter  domain.Limiter
	slots    application.SlotGate
	sessions domain.SessionRegistry
	stats    domain.StatsStore
	retry    application.RetryPolicy

	statsTimeout time.Duration
	events       chan domain.StatsEvent

	pending   chan *job
	closed    chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// mu protege shut: após Close nenhum envio novo chega em pending.
	mu   sync.RWMutex
	shut bool

	queued     atomic.Int64
	backingOff atomic.Int64
	active     atomic.Int64
	dispatched atomic.Int64
	retried    atomic.Int64
	completed  atomic.Int64
	statsLost  atomic.Int64
}

// Counters é uma fotografia dos contadores internos (progresso/diagnóstico).
type Counters struct {
	Queued     int64
	BackingOff int64
	Active     int64
	Dispatched int64
	Retried    int64
	Completed  int64
	// StatsDropped conta eventos descartados porque o gravador não acompanhou.
	StatsDropped int64
}

type job struct {
	ctx      context.Context
	id       string
	session  string
	work     domain.Work
	attempts int
	bo       *backoff.ExponentialBackOff

	done chan jobResult
	once sync.Once
}

type jobResult struct {
	res domain.Result
	err error
}

func New(opts Options) *Queue {
	if opts.Sessions == nil {
		opts.Sessions = infra.NewSessions()
	}
	if opts.Pending <= 0 {
		opts.Pending = 1024
	}
	if opts.StatsTimeout <= 0 {
		opts.StatsTimeout = 2 * time.Second
	}
	if opts.StatsBuffer <= 0 {
		opts.StatsBuffer = 256
	}
	q := &Queue{
		limiter:      opts.Limiter,
		slots:        application.SlotGate{Pool: opts.Slots, Wait: opts.AcquireTimeout},
		sessions:     opts.Sessions,
		stats:        opts.Stats,
		retry:        opts.Retry,
		statsTimeout: opts.StatsTimeout,
		pending:      make(chan *job, opts.Pending),
		closed:       make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	if q.stats != nil {
		q.events = make(chan domain.StatsEvent, opts.StatsBuffer)
		go q.recordLoop()
	}
	go q.run()
	return q
}

// Submit enfileira work e bloqueia até o resultado final: sucesso, falha do
// upstream, retries esgotados ou cancelamento. Resultados parciais não existem.
//
// requestID vazio recebe um uuid. sessionID vazio nunca é considerado cancelado.
func (q *Queue) Submit(ctx context.Context, requestID, sessionID string, work domain.Work) (domain.Result, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	j := &job{
		ctx:     ctx,
		id:      requestID,
		session: sessionID,
		work:    work,
		bo:      q.retry.NewBackOff(),
		done:    make(chan jobResult, 1),
	}

	if reason, ok := q.sessions.Cancelled(sessionID); ok {
		q.finishCancelled(j, reason)
		return j.wait()
	}
	if err := q.enqueue(j); err != nil {
		q.finishErr(j, err)
		return j.wait()
	}

	select {
	case r := <-j.done:
		return r.res, r.err
	case <-ctx.Done():
		// o trabalho pode seguir em voo; o resultado é descartado
		return domain.Result{Kind: domain.ResultCancelled}, cancelledByContext(j, ctx.Err())
	}
}

func (j *job) wait() (domain.Result, error) {
	r := <-j.done
	return r.res, r.err
}

func (q *Queue) CancelSession(session, reason string) {
	if reason == "" {
		reason = "user_request"
	}
	q.sessions.Cancel(session, reason)
	log.Printf("queue: session cancelled session=%s reason=%s", session, reason)
}

// IsSessionCancelled é O(1) e pode ser usado antes mesmo de montar o trabalho.
func (q *Queue) IsSessionCancelled(session string) bool {
	_, ok := q.sessions.Cancelled(session)
	return ok
}

func (q *Queue) Snapshot() Counters {
	return Counters{
		Queued:     q.queued.Load(),
		BackingOff: q.backingOff.Load(),
		Active:     q.active.Load(),
		Dispatched: q.dispatched.Load(),
		Retried:    q.retried.Load(),
		Completed:  q.completed.Load(),

		StatsDropped: q.statsLost.Load(),
	}
}

// Close para o laço de admissão. Trabalhos ainda na fila terminam com domain.ErrClosed;
// chamadas já em voo seguem até o fim.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
		q.mu.Lock()
		q.shut = true
		q.mu.Unlock()
		<-q.stopped
		for {
			select {
			case j := <-q.pending:
				q.queued.Add(-1)
				q.finishErr(j, domain.ErrClosed)
			default:
				return
			}
		}
	})
}

func (q *Queue) enqueue(j *job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.shut {
		return domain.ErrClosed
	}
	q.queued.Add(1)
	select {
	case q.pending <- j:
		return nil
	case <-j.ctx.Done():
		q.queued.Add(-1)
		return cancelledByContext(j, j.ctx.Err())
	case <-q.closed:
		q.queued.Add(-1)
		return domain.ErrClosed
	}
}

// run é o laço de admissão: um único consumidor garante a ordem FIFO.
func (q *Queue) run() {
	defer close(q.stopped)
	for {
		select {
		case <-q.closed:
			return
		case j := <-q.pending:
			q.queued.Add(-1)
			q.admit(j)
		}
	}
}

func (q *Queue) admit(j *job) {
	if q.abandoned(j) {
		return
	}

	release, err := q.slots.Acquire(j.ctx)
	if errors.Is(err, application.ErrSlotTimeout) {
		// devolve ao fim da fila sem gastar token
		go q.requeue(j)
		return
	}
	if err != nil {
		q.finishErr(j, cancelledByContext(j, err))
		return
	}

	if q.limiter != nil {
		if err := q.limiter.Wait(j.ctx); err != nil {
			release()
			q.finishErr(j, cancelledByContext(j, err))
			return
		}
	}

	// verificação imediatamente antes do despacho: a sessão pode ter sido
	// cancelada enquanto o trabalho esperava
	if q.abandoned(j) {
		release()
		return
	}

	q.active.Add(1)
	q.dispatched.Add(1)
	j.attempts++
	go q.dispatch(j, release)
}

func (q *Queue) abandoned(j *job) bool {
	if err := j.ctx.Err(); err != nil {
		q.finishErr(j, cancelledByContext(j, err))
		return true
	}
	if reason, ok := q.sessions.Cancelled(j.session); ok {
		q.finishCancelled(j, reason)
		return true
	}
	return false
}

func (q *Queue) dispatch(j *job, release func()) {
	// a chamada já enviada nunca é abortada pelo cancelamento de quem pediu
	out, err := j.work(context.WithoutCancel(j.ctx))
	release()
	q.active.Add(-1)

	if ctxErr := j.ctx.Err(); ctxErr != nil {
		q.finishErr(j, cancelledByContext(j, ctxErr))
		return
	}

	// a chamada em voo terminou, mas a sessão foi abandonada: descarta
	if reason, ok := q.sessions.Cancelled(j.session); ok {
		q.finishCancelled(j, reason)
		return
	}

	res, err := application.Classify(out, err)
	res.Attempts = j.attempts
	if err == nil {
		q.finish(j, res, nil)
		return
	}

	if !q.retry.ShouldRetry(res.Kind, j.attempts) {
		if res.Kind == domain.ResultRateLimited || res.Kind == domain.ResultNetworkError {
			log.Printf("queue: retries exhausted request=%s attempts=%d kind=%s", j.id, j.attempts, res.Kind)
		}
		q.finish(j, res, err)
		return
	}

	delay := j.bo.NextBackOff()
	q.retried.Add(1)
	q.record(domain.StatsEvent{RequestID: j.id, Session: j.session, Kind: res.Kind, Attempts: j.attempts, Retry: true, At: time.Now()})
	log.Printf("queue: retrying request=%s attempt=%d kind=%s in=%s", j.id, j.attempts, res.Kind, delay)

	q.backingOff.Add(1)
	t := time.NewTimer(delay)
	select {
	case <-t.C:
		q.backingOff.Add(-1)
		q.requeue(j)
	case <-j.ctx.Done():
		t.Stop()
		q.backingOff.Add(-1)
		q.finishErr(j, cancelledByContext(j, j.ctx.Err()))
	case <-q.closed:
		t.Stop()
		q.backingOff.Add(-1)
		q.finish(j, res, err)
	}
}

func (q *Queue) requeue(j *job) {
	if err := q.enqueue(j); err != nil {
		q.finishErr(j, err)
	}
}

func (q *Queue) finishCancelled(j *job, reason string) {
	q.finish(j,
		domain.Result{Kind: domain.ResultCancelled, Attempts: j.attempts},
		&faults.CancelledError{Session: j.session, Reason: reason},
	)
}

func (q *Queue) finishErr(j *job, err error) {
	q.finish(j, domain.Result{Kind: domain.ResultCancelled, Attempts: j.attempts}, err)
}

func (q *Queue) finish(j *job, res domain.Result, err error) {
	j.once.Do(func() {
		q.completed.Add(1)
		j.done <- jobResult{res: res, err: err}
		q.record(domain.StatsEvent{RequestID: j.id, Session: j.session, Kind: res.Kind, Attempts: res.Attempts, At: time.Now()})
	})
}

// record nunca bloqueia: finish também roda no laço de admissão, e um gravador
// lento não pode segurar a fila.
func (q *Queue) record(ev domain.StatsEvent) {
	if q.events == nil {
		return
	}
	select {
	case q.events <- ev:
	default:
		q.statsLost.Add(1)
	}
}

func (q *Queue) recordLoop() {
	for {
		select {
		case ev := <-q.events:
			q.write(ev)
		case <-q.closed:
			for {
				select {
				case ev := <-q.events:
					q.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) write(ev domain.StatsEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), q.statsTimeout)
	defer cancel()
	if err := q.stats.Record(ctx, ev); err != nil {
		log.Printf("queue: stats write failed request=%s: %v", ev.RequestID, err)
	}
}

func cancelledByContext(j *job, err error) error {
	if errors.Is(err, domain.ErrClosed) {
		return err
	}
	return &faults.CancelledError{Session: j.session, Reason: err.Error()}
}
