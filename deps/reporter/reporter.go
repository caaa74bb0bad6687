// Package reporter wraps a Sentry client and hub that are constructed explicitly and passed to the components that report errors.
package reporter

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Environment is the environment tag attached to every event.
const Environment = "production"

// inertDSN parses but is never dialed: the fallback client always uses discardTransport.
const inertDSN = "http://disabled@localhost/0"

type Options struct {
	DSN              string
	Release          string
	Debug            bool
	TracesSampleRate float64
	// KeepRequestBody keeps request bodies on events. Only enable it outside production.
	KeepRequestBody bool
	// BeforeSend runs after request scrubbing. Returning nil drops the event.
	BeforeSend func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event
	Logger     *slog.Logger
}

type Reporter struct {
	hub     *sentry.Hub
	enabled bool
	events  *prometheus.CounterVec
}

// New never fails. If the SDK rejects the options, the reporter falls back to a client whose transport discards events: they still go through the hooks but are not delivered.
func New(opts Options) *Reporter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Reporter{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_events_total",
			Help: "Number of events handed to the error reporter transport.",
		}, []string{"kind"}),
	}

	clientOpts := sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      Environment,
		Release:          opts.Release,
		Debug:            opts.Debug,
		AttachStacktrace: true,
		SendDefaultPII:   false,
		EnableTracing:    opts.TracesSampleRate > 0,
		TracesSampleRate: opts.TracesSampleRate,
		BeforeSend:       r.beforeSend(opts),
	}

	client, err := sentry.NewClient(clientOpts)
	if err != nil {
		logger.Warn("error reporter initialization failed, events will not be delivered", slog.String("error", err.Error()))
		// An empty Dsn would make the SDK read SENTRY_DSN again.
		clientOpts.Dsn = inertDSN
		clientOpts.Transport = discardTransport{}
		if client, err = sentry.NewClient(clientOpts); err != nil {
			logger.Error("failed to create fallback error reporter client", slog.String("error", err.Error()))
		}
	} else {
		r.enabled = client.Options().Dsn != ""
	}

	r.hub = sentry.NewHub(client, sentry.NewScope())
	return r
}

func (r *Reporter) beforeSend(opts Options) func(*sentry.Event, *sentry.EventHint) *sentry.Event {
	return func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
		scrubRequest(event.Request, opts.KeepRequestBody)
		r.events.WithLabelValues(eventKind(event)).Inc()
		if opts.BeforeSend != nil {
			return opts.BeforeSend(event, hint)
		}
		return event
	}
}

func eventKind(event *sentry.Event) string {
	if len(event.Exception) > 0 {
		return "exception"
	}
	return "message"
}

func (r *Reporter) CaptureException(err error) *sentry.EventID {
	return r.hub.CaptureException(err)
}

// Recover reports a panic, waits up to timeout for delivery and panics again. It must be deferred directly.
func (r *Reporter) Recover(timeout time.Duration) {
	if v := recover(); v != nil {
		r.hub.Recover(v)
		r.hub.Flush(timeout)
		panic(v)
	}
}

// Flush waits until buffered events are sent or the timeout elapses. It reports whether the buffer was drained.
func (r *Reporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}

// Hub is the root hub. Clone it before attaching request-scoped data.
func (r *Reporter) Hub() *sentry.Hub {
	return r.hub
}

// Enabled reports whether events are delivered to a backend.
func (r *Reporter) Enabled() bool {
	return r.enabled
}

func (r *Reporter) Describe(ch chan<- *prometheus.Desc) {
	r.events.Describe(ch)
}

func (r *Reporter) Collect(ch chan<- prometheus.Metric) {
	r.events.Collect(ch)
}

type discardTransport struct{}

func (discardTransport) Configure(sentry.ClientOptions) {}

func (discardTransport) SendEvent(*sentry.Event) {}

func (discardTransport) Flush(time.Duration) bool { return true }

func (discardTransport) Close() {}
