package sutureext

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/thejerf/suture/v4"
)

func NewSimple(name string) *suture.Supervisor {
	return suture.New(name, suture.Spec{
		EventHook: EventHook(),
	})
}

func EventHook() suture.EventHook {
	return func(ei suture.Event) {
		switch e := ei.(type) {
		case suture.EventStopTimeout:
			slog.Info("Service did not stop in time", slog.String("supervisor", e.SupervisorName), slog.String("service", e.ServiceName))
		case suture.EventServicePanic:
			slog.Error("Service panicked", slog.String("supervisor", e.SupervisorName), slog.String("service", e.ServiceName), slog.String("panic", e.PanicMsg))
			slog.Debug(e.Stacktrace)
		case suture.EventServiceTerminate:
			if errors.Is(toError(e.Err), suture.ErrTerminateSupervisorTree) {
				slog.Debug("Service finished", slog.String("supervisor", e.SupervisorName), slog.String("service", e.ServiceName))
				return
			}
			slog.Error("Service failed", slog.Any("error", e.Err), slog.String("supervisor", e.SupervisorName), slog.String("service", e.ServiceName))
			b, _ := json.Marshal(e)
			slog.Debug(string(b))
		case suture.EventBackoff:
			slog.Warn("Service keeps failing, backing off", slog.String("supervisor", e.SupervisorName))
		case suture.EventResume:
			slog.Debug("Resuming after backoff", slog.String("supervisor", e.SupervisorName))
		default:
			slog.Warn("Unknown suture supervisor event type", "type", int(e.Type()))
			b, _ := json.Marshal(e)
			slog.Info(string(b))
		}
	}
}

func toError(v any) error {
	err, _ := v.(error)
	return err
}

// Service forces the use of the String method
type Service interface {
	String() string
	suture.Service
}

// Run supervises a single service until it returns or ctx is done. Whatever
// the service returns ends the tree and is returned from Run. Panics are
// restarted by the supervisor.
func Run(ctx context.Context, name string, service Service) error {
	super := NewSimple(name)

	once := &onceService{Service: service}
	super.Add(once)

	err := super.Serve(ctx)
	if result, ok := once.result(); ok {
		return result
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

type onceService struct {
	Service

	mu   sync.Mutex
	done bool
	err  error
}

func (s *onceService) Serve(ctx context.Context) error {
	err := SanitizeError(ctx, s.Service.Serve(ctx))
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	s.done, s.err = true, err
	s.mu.Unlock()

	return suture.ErrTerminateSupervisorTree
}

func (s *onceService) result() (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err, s.done
}

// SanitizeError prevents the error from being interpreted as a context error unless it
// really is a context error because suture kills the service when it sees a context error.
func SanitizeError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}

	return errors.New(err.Error())
}
