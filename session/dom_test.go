package session

import (
	"context"
	"net/url"
	"sync"

	"github.com/authcell/authcell/rpc"
)

// fakeFrame records hidden-frame navigations.  When onNavigate is set it
// runs in its own goroutine, standing in for whatever the frame's
// document does after loading.
type fakeFrame struct {
	mu         sync.Mutex
	urls       []string
	onNavigate func(rawURL string)
}

func (f *fakeFrame) Navigate(_ context.Context, rawURL string) error {
	f.mu.Lock()
	f.urls = append(f.urls, rawURL)
	fn := f.onNavigate
	f.mu.Unlock()
	if fn != nil {
		go fn(rawURL)
	}
	return nil
}

func (f *fakeFrame) navigated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

type fakeNavigator struct {
	mu   sync.Mutex
	urls []string
}

func (n *fakeNavigator) Navigate(_ context.Context, rawURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, rawURL)
	return nil
}

func (n *fakeNavigator) navigated() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.urls...)
}

// fakeLocation holds a mutable current URL.  Replace rewrites it without
// counting as a navigation, like a history.replaceState.
type fakeLocation struct {
	mu       sync.Mutex
	current  *url.URL
	replaced []*url.URL
}

func newFakeLocation(rawURL string) *fakeLocation {
	u, err := url.Parse(rawURL)
	if err != nil {
		panic(err)
	}
	return &fakeLocation{current: u}
}

func (l *fakeLocation) Current() (*url.URL, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := *l.current
	return &u, nil
}

func (l *fakeLocation) Replace(u *url.URL) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *u
	l.current = &cp
	l.replaced = append(l.replaced, &cp)
	return nil
}

func (l *fakeLocation) replacedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.replaced)
}

// fakeBus fans signals out synchronously and counts deregistrations.
type fakeBus struct {
	mu      sync.Mutex
	subs    map[int]func(Signal)
	next    int
	cancels int
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: map[int]func(Signal){}}
}

func (b *fakeBus) Subscribe(fn func(Signal)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.cancels++
		delete(b.subs, id)
	}, nil
}

func (b *fakeBus) Publish(s Signal) {
	b.mu.Lock()
	fns := make([]func(Signal), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

func (b *fakeBus) cancelCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancels
}

// scriptTransport answers channel calls from a per-type script and
// counts every call.  Unscripted types fail loudly so a test cannot
// silently exercise an unexpected round trip.
type scriptTransport struct {
	mu            sync.Mutex
	calls         map[rpc.MessageType]int
	handlers      map[rpc.MessageType]func(rpc.Message) rpc.Response
	notifications chan rpc.Message
}

func newScriptTransport() *scriptTransport {
	return &scriptTransport{
		calls:         map[rpc.MessageType]int{},
		handlers:      map[rpc.MessageType]func(rpc.Message) rpc.Response{},
		notifications: make(chan rpc.Message, 8),
	}
}

func (t *scriptTransport) handle(mt rpc.MessageType, fn func(rpc.Message) rpc.Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[mt] = fn
}

func (t *scriptTransport) Post(m rpc.Message, reply chan<- rpc.Response) error {
	t.mu.Lock()
	t.calls[m.Type]++
	fn := t.handlers[m.Type]
	t.mu.Unlock()
	go func() {
		if fn == nil {
			reply <- rpc.NewErrorResponse(&rpc.ErrorInfo{Message: "unscripted message type " + string(m.Type)})
			return
		}
		reply <- fn(m)
	}()
	return nil
}

func (t *scriptTransport) Notifications() <-chan rpc.Message {
	return t.notifications
}

func (t *scriptTransport) count(mt rpc.MessageType) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[mt]
}

func okResp(payload interface{}) rpc.Response {
	r, err := rpc.NewSuccessResponse(payload, nil)
	if err != nil {
		panic(err)
	}
	return r
}
