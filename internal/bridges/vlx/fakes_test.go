package vlx

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/nerrad567/vlx-bridge/internal/gateway"
	"github.com/nerrad567/vlx-bridge/internal/infrastructure/mqtt"
)

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// fakeNode is a gateway.Node that records driver calls.
type fakeNode struct {
	mu       sync.Mutex
	id       int
	name     string
	typ      gateway.DeviceType
	position int
	target   int
	setCalls []int
	stops    int
	failWith error
	subs     []func(gateway.Node)
}

func newFakeNode(id int, name string, typ gateway.DeviceType, position int) *fakeNode {
	return &fakeNode{id: id, name: name, typ: typ, position: position, target: position}
}

func (n *fakeNode) ID() int                  { return n.id }
func (n *fakeNode) Name() string             { return n.name }
func (n *fakeNode) Type() gateway.DeviceType { return n.typ }

func (n *fakeNode) Position() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.position
}

func (n *fakeNode) Target() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.target
}

func (n *fakeNode) SetPosition(_ context.Context, pct int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return n.failWith
	}
	n.setCalls = append(n.setCalls, pct)
	n.target = pct
	return nil
}

// Stop records the call and raises the callbacks synchronously, as a real
// driver does when it confirms the halt.
func (n *fakeNode) Stop(context.Context) error {
	n.mu.Lock()
	if n.failWith != nil {
		n.mu.Unlock()
		return n.failWith
	}
	n.stops++
	n.target = n.position
	n.mu.Unlock()
	n.notify()
	return nil
}

func (n *fakeNode) Subscribe(fn func(gateway.Node)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = append(n.subs, fn)
}

// report sets the position and raises the node callbacks. Must run on the
// loop.
func (n *fakeNode) report(pos int) {
	n.mu.Lock()
	n.position = pos
	n.mu.Unlock()
	n.notify()
}

// halt stops the node at pos without a command and raises the callbacks.
// Must run on the loop.
func (n *fakeNode) halt(pos int) {
	n.mu.Lock()
	n.position = pos
	n.target = pos
	n.mu.Unlock()
	n.notify()
}

func (n *fakeNode) notify() {
	n.mu.Lock()
	subs := slices.Clone(n.subs)
	n.mu.Unlock()
	for _, fn := range subs {
		fn(n)
	}
}

func (n *fakeNode) calls() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int(nil), n.setCalls...)
}

func (n *fakeNode) stopCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stops
}

func (n *fakeNode) fail(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failWith = err
}

// fakeGateway implements Pinger.
type fakeGateway struct {
	mu    sync.Mutex
	pings int
	err   error
}

func (g *fakeGateway) Ping(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pings++
	return g.err
}

func (g *fakeGateway) setErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *fakeGateway) pingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pings
}

// mockBus implements BusClient.
type mockBus struct {
	mu           sync.Mutex
	published    []mockPublish
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	publishErr   error
}

type mockPublish struct {
	Topic    string
	Payload  string
	Retained bool
}

func newMockBus() *mockBus {
	return &mockBus{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockBus) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: string(payload), Retained: retained})
	return nil
}

func (m *mockBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockBus) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *mockBus) IsConnected() bool { return true }

// deliver simulates an inbound message on topic.
func (m *mockBus) deliver(topic, payload string) error {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		return errors.New("no subscription for " + topic)
	}
	return handler(topic, []byte(payload))
}

// last returns the most recent payload on topic.
func (m *mockBus) last(topic string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].Topic == topic {
			return m.published[i].Payload, true
		}
	}
	return "", false
}

// payloads returns every payload published on topic, oldest first.
func (m *mockBus) payloads(topic string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p.Payload)
		}
	}
	return out
}

// count returns how many messages were published on topic.
func (m *mockBus) count(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.published {
		if p.Topic == topic {
			n++
		}
	}
	return n
}

func (m *mockBus) subscribed(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[topic]
	return ok
}

// recordingReporter implements ContactRecorder and ErrorReporter.
type recordingReporter struct {
	mu       sync.Mutex
	contacts int
	errs     []error
}

func (r *recordingReporter) RecordContact() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts++
}

func (r *recordingReporter) ReportError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingReporter) contactCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contacts
}

func (r *recordingReporter) reported() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// memLimitStore is an in-memory LimitStore.
type memLimitStore struct {
	mu     sync.Mutex
	limits map[string]bool
}

func (s *memLimitStore) LoadLimits(context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.limits))
	for k, v := range s.limits {
		out[k] = v
	}
	return out, nil
}

func (s *memLimitStore) SaveLimit(_ context.Context, id string, limited bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limits == nil {
		s.limits = make(map[string]bool)
	}
	s.limits[id] = limited
	return nil
}

func (s *memLimitStore) get(id string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.limits[id]
	return v, ok
}

// countingMetrics implements Metrics.
type countingMetrics struct {
	mu        sync.Mutex
	commands  map[string]int
	publishes int
}

func (m *countingMetrics) CommandHandled(kind, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commands == nil {
		m.commands = make(map[string]int)
	}
	m.commands[kind+"/"+result]++
}

func (m *countingMetrics) StatePublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishes++
}

func (m *countingMetrics) command(kind, result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commands[kind+"/"+result]
}

// recordingPoints implements PointWriter.
type recordingPoints struct {
	mu     sync.Mutex
	points []recordedPoint
}

type recordedPoint struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
}

func (r *recordingPoints) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, recordedPoint{measurement, tags, fields})
}

func (r *recordingPoints) all() []recordedPoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedPoint(nil), r.points...)
}
