// Package dispatch implements the request dispatcher (C4): parses an
// incoming bus envelope, selects a handler by method, enforces payload
// schema, invokes the handler, collects its ordered outbound sequence, and
// publishes it — spec.md §4.4's four-branch algorithm (request, response,
// event, parse failure), implemented exactly as specified.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/netology-group/conferences/internal/alert"
	"github.com/netology-group/conferences/internal/correlate"
	"github.com/netology-group/conferences/internal/envelope"
	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/handler"
	"github.com/netology-group/conferences/internal/logging"
	"github.com/netology-group/conferences/internal/store"
	"github.com/netology-group/conferences/internal/telemetry"
)

// Publisher is the bus-side send operation the dispatcher depends on.
// internal/bus's Redis client implements this.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Route pairs a method's payload shape with the handler that serves it.
// NewPayload returns a fresh zero value for strict-decoding against; it is
// called once per request so concurrent dispatches never share one.
type Route struct {
	NewPayload func() any
	Handler    handler.Func
}

// Dispatcher holds the method routing table, the response-continuation
// table, and the shared infrastructure every handler call needs.
type Dispatcher struct {
	routes        map[string]Route
	continuations map[string]handler.ContinuationFunc
	observers     map[string]func(context.Context, envelope.Inbound)
	table         *correlate.Table
	publisher     Publisher
	pool          *Pool
	alertSink     alert.Sink
	builder       *envelope.Builder
}

// New constructs a Dispatcher. poolSize bounds concurrent blocking store
// calls (see pool.go).
func New(publisher Publisher, table *correlate.Table, alertSink alert.Sink, builder *envelope.Builder, poolSize int) *Dispatcher {
	return &Dispatcher{
		routes:        make(map[string]Route),
		continuations: make(map[string]handler.ContinuationFunc),
		observers:     make(map[string]func(context.Context, envelope.Inbound)),
		table:         table,
		publisher:     publisher,
		pool:          NewPool(poolSize),
		alertSink:     alertSink,
		builder:       builder,
	}
}

// Register binds method to a route.
func (d *Dispatcher) Register(method string, newPayload func() any, fn handler.Func) {
	d.routes[method] = Route{NewPayload: newPayload, Handler: fn}
}

// RegisterContinuation binds tag (a correlate.Entry.Tag) to the function
// that rewraps the eventual backend response.
func (d *Dispatcher) RegisterContinuation(tag string, fn handler.ContinuationFunc) {
	d.continuations[tag] = fn
}

// RegisterObserver binds topic to a callback invoked for every event
// received on it (spec.md §4.4 branch 4: "route by topic+label to the
// registered observer, if any").
func (d *Dispatcher) RegisterObserver(topic string, fn func(context.Context, envelope.Inbound)) {
	d.observers[topic] = fn
}

// Pool exposes the bounded blocking-call pool so handlers can run store
// calls through it (spec.md §5's run_blocking requirement).
func (d *Dispatcher) Pool() *Pool { return d.pool }

// Dispatch processes raw asynchronously, one independent goroutine per
// envelope, so the bus receive loop is never blocked by a single slow
// handler.
func (d *Dispatcher) Dispatch(ctx context.Context, topic string, raw []byte) {
	go d.handle(ctx, topic, raw)
}

// InvokeSystem runs method's registered handler with a synthetic,
// locally-sourced request and publishes its outbound sequence exactly as
// Dispatch would for a bus-delivered one. Used by internal/scheduler to
// trigger system.vacuum on a timer without round-tripping through the bus.
func (d *Dispatcher) InvokeSystem(ctx context.Context, audience, method string, payload any) error {
	in := envelope.Inbound{
		Kind: envelope.KindRequest,
		Properties: envelope.Properties{
			Method:   method,
			Audience: audience,
		},
	}

	route, ok := d.routes[method]
	if !ok {
		return errs.New(errs.NotImplemented, nil).WithContext("method", method)
	}

	outs, err := route.Handler(ctx, handler.Request{Inbound: in, Audience: audience, Payload: payload})
	if err != nil {
		return err
	}
	d.publish(ctx, outs)
	return nil
}

func (d *Dispatcher) handle(ctx context.Context, topic string, raw []byte) {
	start := time.Now()

	in, err := envelope.ParseInbound(topic, raw)
	if err != nil {
		logging.Error(ctx, "failed to parse inbound envelope", zap.String("topic", topic), zap.Error(err))
		return
	}

	switch in.Kind {
	case envelope.KindRequest:
		d.handleRequest(ctx, in, start)
	case envelope.KindResponse:
		d.handleResponse(ctx, in)
	case envelope.KindEvent, envelope.KindNotification:
		d.handleEvent(ctx, in)
	}
}

func (d *Dispatcher) handleRequest(ctx context.Context, in envelope.Inbound, start time.Time) {
	ctx = logging.WithRequest(ctx, in.Properties.Audience, in.Properties.Method)
	telemetry.InFlightRequests.Inc()
	defer telemetry.InFlightRequests.Dec()
	defer func() {
		telemetry.HandlerDuration.WithLabelValues(in.Properties.Method).Observe(time.Since(start).Seconds())
	}()

	route, ok := d.routes[in.Properties.Method]
	if !ok {
		d.respondError(ctx, in, start, errs.New(errs.NotImplemented, nil).WithContext("method", in.Properties.Method))
		return
	}

	payload := route.NewPayload()
	if err := strictDecode(in.Payload, payload); err != nil {
		d.respondError(ctx, in, start, errs.New(errs.InvalidPayload, err))
		return
	}

	outs, err := route.Handler(ctx, handler.Request{Inbound: in, Audience: in.Properties.Audience, Payload: payload})
	if err != nil {
		d.respondError(ctx, in, start, err)
		return
	}

	d.publish(ctx, outs)
}

func (d *Dispatcher) respondError(ctx context.Context, in envelope.Inbound, start time.Time, cause error) {
	appErr, ok := errs.As(cause)
	if !ok {
		appErr = errs.New(errs.Internal, cause)
	}

	logging.Error(ctx, "handler error", zap.String("kind", string(appErr.Kind)), zap.Error(appErr))
	if appErr.Kind.Alert() {
		d.alertSink.Send(ctx, appErr, in.Properties.Method)
	}

	resp, buildErr := d.builder.Response(in, appErr.Kind.Status(), errorPayload{
		Code:  appErr.Kind.Code(),
		Title: appErr.Kind.Title(),
	}, nil, start)
	if buildErr != nil {
		logging.Error(ctx, "failed to build error response", zap.Error(buildErr))
		return
	}
	d.publish(ctx, []envelope.Publishable{resp})
}

type errorPayload struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

func (d *Dispatcher) handleResponse(ctx context.Context, in envelope.Inbound) {
	entry, ok := d.table.Take(store.CorrelationToken(in.Properties.CorrelationData))
	if !ok {
		logging.Warn(ctx, "dropping response with no matching correlation entry",
			zap.String("correlation_data", in.Properties.CorrelationData))
		return
	}

	fn, ok := d.continuations[entry.Tag]
	if !ok {
		logging.Warn(ctx, "dropping response with no registered continuation", zap.String("tag", entry.Tag))
		return
	}

	outs, err := fn(ctx, entry, in)
	if err != nil {
		logging.Warn(ctx, "continuation failed, dropping response", zap.String("tag", entry.Tag), zap.Error(err))
		return
	}
	d.publish(ctx, outs)
}

func (d *Dispatcher) handleEvent(ctx context.Context, in envelope.Inbound) {
	observer, ok := d.observers[in.Topic]
	if !ok {
		return
	}
	observer(ctx, in)
}

// publish sends outs in order, never concurrently, so handler-declared
// ordering is preserved on the wire (spec.md §4.4/§5).
func (d *Dispatcher) publish(ctx context.Context, outs []envelope.Publishable) {
	for _, out := range outs {
		raw, err := out.MarshalPayload()
		if err != nil {
			logging.Error(ctx, "failed to marshal outbound envelope", zap.String("topic", out.DestinationTopic()), zap.Error(err))
			continue
		}
		if err := d.publisher.Publish(ctx, out.DestinationTopic(), raw); err != nil {
			logging.Error(ctx, "failed to publish outbound envelope", zap.String("topic", out.DestinationTopic()), zap.Error(err))
		}
	}
}

func strictDecode(raw json.RawMessage, target any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
