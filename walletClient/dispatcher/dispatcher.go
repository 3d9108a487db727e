// Package dispatcher runs signing engine operations off the caller's
// goroutine. Every Dispatch returns a Future immediately; one goroutine per
// operation performs the engine call and resolves the future exactly once.
//
// Failures are normalized to ErrCodeNetwork, ErrCodeProtocolAborted or
// ErrCodeEngine. No ordering is imposed between operations, including
// operations for the same wallet.
package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pushchain/push-wallet-signer/walletClient/engine"
	uerrors "github.com/pushchain/push-wallet-signer/walletClient/errors"
)

// Operation identifies an engine call.
type Operation string

const (
	OpCreateAccount   Operation = "CreateAccount"
	OpGetAddress      Operation = "GetAddress"
	OpSignTransaction Operation = "SignTransaction"
)

// DefaultTimeout bounds an operation when the caller configures none.
const DefaultTimeout = 120 * time.Second

// Request carries the immutable inputs of one operation. Fields not used by
// the operation are ignored.
type Request struct {
	Operation   Operation
	ServerURL   string
	Descriptor  string
	Handle      string
	Transaction string
	ProtocolID  string

	// WalletID is only used for logging.
	WalletID string
}

// Config holds dispatcher settings.
type Config struct {
	// Timeout bounds each operation. Zero means DefaultTimeout; a negative
	// value disables the bound.
	Timeout time.Duration

	// Registerer receives the dispatcher metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// Dispatcher runs engine operations concurrently.
type Dispatcher struct {
	engine  engine.Engine
	timeout time.Duration
	logger  zerolog.Logger
	metrics *metrics

	wg sync.WaitGroup
}

// New creates a dispatcher for eng.
func New(eng engine.Engine, cfg Config, logger zerolog.Logger) *Dispatcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		engine:  eng,
		timeout: timeout,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
		metrics: newMetrics(cfg.Registerer),
	}
}

// Timeout returns the per-operation bound, or a negative value if unbounded.
func (d *Dispatcher) Timeout() time.Duration { return d.timeout }

// Dispatch starts req and returns without waiting for the engine.
func (d *Dispatcher) Dispatch(req Request) *Future {
	sessionID := uuid.NewString()
	f := newFuture(req.Operation, sessionID)

	d.wg.Add(1)
	d.metrics.inflight.Inc()
	go d.run(f, req)

	return f
}

// Wait blocks until every dispatched operation has resolved.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(f *Future, req Request) {
	defer d.wg.Done()
	defer d.metrics.inflight.Dec()

	start := time.Now()
	log := d.logger.With().
		Str("session_id", f.SessionID()).
		Str("operation", string(req.Operation)).
		Str("wallet_id", req.WalletID).
		Logger()
	log.Debug().Msg("operation started")

	ctx, cancel := d.operationContext()
	defer cancel()

	type outcome struct {
		value string
		err   error
	}
	// Buffered so an engine call that outlives the timeout can still finish.
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: uerrors.NewEngineError(string(req.Operation), fmt.Sprintf("engine panicked: %v", r), nil)}
			}
		}()
		v, err := d.invoke(ctx, req)
		ch <- outcome{value: v, err: err}
	}()

	var out outcome
	select {
	case out = <-ch:
	case <-ctx.Done():
		out.err = uerrors.NewNetworkError(string(req.Operation),
			fmt.Sprintf("no result from engine within %s", d.timeout), ctx.Err())
	}

	err := normalize(req.Operation, out.err)
	value := out.value
	if err != nil {
		value = ""
	}
	f.resolve(value, err)

	elapsed := time.Since(start)
	d.metrics.duration.WithLabelValues(string(req.Operation)).Observe(elapsed.Seconds())
	if err != nil {
		d.metrics.operations.WithLabelValues(string(req.Operation), strings.ToLower(string(uerrors.CodeOf(err)))).Inc()
		log.Warn().Err(err).Dur("duration", elapsed).Msg("operation failed")
		return
	}
	d.metrics.operations.WithLabelValues(string(req.Operation), "success").Inc()
	log.Info().Dur("duration", elapsed).Msg("operation completed")
}

func (d *Dispatcher) operationContext() (context.Context, context.CancelFunc) {
	if d.timeout < 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), d.timeout)
}

func (d *Dispatcher) invoke(ctx context.Context, req Request) (string, error) {
	switch req.Operation {
	case OpCreateAccount:
		return d.engine.CreateAccount(ctx, req.ServerURL, req.Descriptor, req.ProtocolID)
	case OpGetAddress:
		return d.engine.GetAddress(ctx, req.Handle)
	case OpSignTransaction:
		return d.engine.SignTransaction(ctx, req.ServerURL, req.Handle, req.Transaction, req.ProtocolID)
	default:
		return "", uerrors.NewEngineError(string(req.Operation), "unsupported operation", nil)
	}
}

// normalize maps any engine error onto the three asynchronous failure kinds.
// Unclassified errors become ErrCodeEngine with their text preserved.
// Classified errors are returned as is; they belong to the engine and may be
// shared between operations.
func normalize(op Operation, err error) error {
	if err == nil {
		return nil
	}
	switch uerrors.CodeOf(err) {
	case uerrors.ErrCodeNetwork, uerrors.ErrCodeProtocolAborted, uerrors.ErrCodeEngine:
		return err
	}
	if uerrors.Is(err, context.DeadlineExceeded) {
		return uerrors.NewNetworkError(string(op), "engine did not respond in time", err)
	}
	return uerrors.NewEngineError(string(op), "engine failure", err)
}
