package prefsync

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ConnectivitySource reports the host environment's network reachability.
// Subscribe registers fn for state transitions and returns an unsubscribe
// function.
type ConnectivitySource interface {
	Online() bool
	Subscribe(fn func(online bool)) (cancel func())
}

// ConnectivityMonitor tracks online/offline transitions from a
// ConnectivitySource. It is a thin observer: its only outputs are the
// current boolean and reconnect callbacks.
type ConnectivityMonitor struct {
	logger *slog.Logger
	cancel func()

	mu        sync.Mutex
	online    bool
	reconnect []func()
}

// NewConnectivityMonitor starts observing src, defaulting to its current
// state.
func NewConnectivityMonitor(src ConnectivitySource, logger *slog.Logger) *ConnectivityMonitor {
	m := &ConnectivityMonitor{
		logger: logger,
		online: src.Online(),
	}
	m.cancel = src.Subscribe(m.transition)
	return m
}

// IsOnline reports the last observed connectivity state.
func (m *ConnectivityMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnReconnect registers fn to run on every offline-to-online transition.
func (m *ConnectivityMonitor) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnect = append(m.reconnect, fn)
}

// Close stops observing the source.
func (m *ConnectivityMonitor) Close() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *ConnectivityMonitor) transition(online bool) {
	m.mu.Lock()
	if online == m.online {
		m.mu.Unlock()
		return
	}
	m.online = online
	cbs := append([]func(){}, m.reconnect...)
	m.mu.Unlock()

	m.logger.Info("connectivity changed", "online", online)
	if online {
		for _, fn := range cbs {
			fn()
		}
	}
}

// ProbeSource derives connectivity from periodic HTTP reachability probes.
// A Go daemon has no browser online/offline events, so a cheap HEAD
// request against a known endpoint stands in for the host signal.
type ProbeSource struct {
	url      string
	interval time.Duration
	client   *http.Client
	stopCh   chan struct{}

	mu        sync.Mutex
	online    bool
	nextID    int
	listeners map[int]func(bool)
	stopped   bool
}

// NewProbeSource starts probing url every interval. The source assumes it
// is online until a probe says otherwise.
func NewProbeSource(url string, interval time.Duration) *ProbeSource {
	p := &ProbeSource{
		url:       url,
		interval:  interval,
		client:    &http.Client{Timeout: 5 * time.Second},
		stopCh:    make(chan struct{}),
		online:    true,
		listeners: make(map[int]func(bool)),
	}
	go p.loop()
	return p
}

func (p *ProbeSource) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

func (p *ProbeSource) Subscribe(fn func(online bool)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Close stops the probe loop.
func (p *ProbeSource) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.stopped = true
		close(p.stopCh)
	}
}

func (p *ProbeSource) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.set(p.probe())
		}
	}
}

func (p *ProbeSource) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func (p *ProbeSource) set(online bool) {
	p.mu.Lock()
	if online == p.online {
		p.mu.Unlock()
		return
	}
	p.online = online
	cbs := make([]func(bool), 0, len(p.listeners))
	for _, fn := range p.listeners {
		cbs = append(cbs, fn)
	}
	p.mu.Unlock()

	for _, fn := range cbs {
		fn(online)
	}
}
