package mqtt

import "sync"

// FakeChannel records published messages for test assertions. It is safe
// for use from the telemetry goroutine and the main loop at once.
type FakeChannel struct {
	mu sync.Mutex

	temperatures []float64
	clips        []string
	systemEvents []SystemEvent

	// PublishError, if set, is returned by every publish.
	PublishError error

	connected bool
	closed    bool
}

// NewFakeChannel creates a connected FakeChannel.
func NewFakeChannel() *FakeChannel {
	return &FakeChannel{connected: true}
}

func (f *FakeChannel) PublishTemperature(celsius float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.temperatures = append(f.temperatures, celsius)
	return nil
}

func (f *FakeChannel) PublishClip(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.clips = append(f.clips, url)
	return nil
}

func (f *FakeChannel) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.systemEvents = append(f.systemEvents, event)
	return nil
}

// SetConnected controls the return value of IsConnected.
func (f *FakeChannel) SetConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

func (f *FakeChannel) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeChannel) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Temperatures returns a copy of the published temperatures.
func (f *FakeChannel) Temperatures() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.temperatures...)
}

// Clips returns a copy of the published clip URLs.
func (f *FakeChannel) Clips() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.clips...)
}

// SystemEvents returns a copy of the published system events.
func (f *FakeChannel) SystemEvents() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.systemEvents...)
}

// Closed reports whether Close was called.
func (f *FakeChannel) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
