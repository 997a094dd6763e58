package fuzz

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"wsfuzz/internal/adapter/payloads"
	"wsfuzz/internal/domain"
)

// ProbeConn is a connection a Prober can open and observe.
type ProbeConn interface {
	Connection
	Connect(ctx context.Context, url string) error
	Disconnect()
	OnMessage(h func(text string))
}

// ProbeOptions holds probe timings.
type ProbeOptions struct {
	ConnectTimeout time.Duration
	Settle         time.Duration // pause between connect and the first send
	EnumSettle     time.Duration
	ResponseWindow time.Duration // how long to listen after the last send
	EnumDelay      time.Duration
}

// DefaultProbeOptions returns the stock probe timings.
func DefaultProbeOptions() ProbeOptions {
	return ProbeOptions{
		ConnectTimeout: 5 * time.Second,
		Settle:         500 * time.Millisecond,
		EnumSettle:     time.Second,
		ResponseWindow: 3 * time.Second,
		EnumDelay:      200 * time.Millisecond,
	}
}

// EnumKind selects what Enumerate probes for.
type EnumKind string

const (
	EnumEvents     EnumKind = "events"
	EnumNamespaces EnumKind = "namespaces"
)

// Enumeration templates and the catalog sets they draw from.
const (
	eventTemplate     = `42["§item§",{}]`
	namespaceTemplate = `40§item§,`
	eventSet          = "Socket.IO Events"
	namespaceSet      = "Socket.IO Namespaces"
)

// AuthResult is the outcome of an unauthenticated send.
type AuthResult struct {
	Connected  bool     `json:"connected"`
	Sent       bool     `json:"sent"`
	Responses  []string `json:"responses"`
	Diagnostic string   `json:"diagnostic,omitempty"`
}

// RaceResult summarises a burst of identical frames.
type RaceResult struct {
	Sent      int             `json:"sent"`
	Failed    int             `json:"failed"`
	Elapsed   time.Duration   `json:"elapsed"`
	Rate      float64         `json:"rate"` // frames per second
	Responses []string        `json:"responses"`
	Unique    []ResponseCount `json:"unique"`
}

// ResponseCount is one distinct response text and how often it arrived.
type ResponseCount struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// Finding pairs an enumerated item with a response it provoked.
type Finding struct {
	Item     string `json:"item"`
	Frame    string `json:"frame"`
	Response string `json:"response"`
}

// EnumResult is the outcome of an enumeration run.
type EnumResult struct {
	Kind     EnumKind                `json:"kind"`
	Tested   int                     `json:"tested"`
	Results  []domain.MutationResult `json:"results"`
	Findings []Finding               `json:"findings"`
}

// Prober runs one-shot probes, each on a fresh connection.
type Prober struct {
	dial    func() ProbeConn
	opts    ProbeOptions
	catalog *payloads.Catalog
	logger  *slog.Logger
	bus     domain.EventBus
}

// NewProber creates a prober. dial must return an unconnected ProbeConn
// with no handshake headers set.
func NewProber(dial func() ProbeConn, opts ProbeOptions, catalog *payloads.Catalog, logger *slog.Logger, bus domain.EventBus) *Prober {
	if catalog == nil {
		catalog = payloads.Builtin()
	}
	return &Prober{dial: dial, opts: opts, catalog: catalog, logger: logger, bus: bus}
}

// inbox collects inbound frames from a probe connection.
type inbox struct {
	mu   sync.Mutex
	msgs []string
}

func (b *inbox) add(text string) {
	b.mu.Lock()
	b.msgs = append(b.msgs, text)
	b.mu.Unlock()
}

func (b *inbox) all() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.msgs...)
}

func (p *Prober) open(ctx context.Context, url string, h func(string)) (ProbeConn, error) {
	conn := p.dial()
	conn.OnMessage(h)
	cctx, cancel := context.WithTimeout(ctx, p.opts.ConnectTimeout)
	defer cancel()
	if err := conn.Connect(cctx, url); err != nil {
		return nil, err
	}
	return conn, nil
}

// AuthBypass connects without credentials, sends frame and reports what
// the server answered. A refused connection is a result, not an error.
func (p *Prober) AuthBypass(ctx context.Context, url, frame string) (AuthResult, error) {
	var res AuthResult
	in := &inbox{}

	p.logger.Info("auth bypass probe", "url", url)
	conn, err := p.open(ctx, url, in.add)
	if err != nil {
		if domain.IsRetryableError(err) {
			res.Diagnostic = err.Error()
			return res, nil
		}
		return res, err
	}
	defer conn.Disconnect()
	res.Connected = true

	if err := conn.Send(ctx, frame); err != nil {
		res.Diagnostic = err.Error()
		return res, nil
	}
	res.Sent = true

	sleep(ctx, p.opts.ResponseWindow)
	res.Responses = in.all()
	return res, nil
}

// Race sends frame n times back to back on one connection.
func (p *Prober) Race(ctx context.Context, url, frame string, n int) (RaceResult, error) {
	if n < 1 {
		return RaceResult{}, domain.NewDomainError("Prober.Race", domain.ErrInvalidInput, "count must be positive")
	}
	in := &inbox{}
	conn, err := p.open(ctx, url, in.add)
	if err != nil {
		return RaceResult{}, err
	}
	defer conn.Disconnect()
	sleep(ctx, p.opts.Settle)

	var res RaceResult
	start := time.Now()
	for i := 0; i < n; i++ {
		if err := conn.Send(ctx, frame); err != nil {
			res.Failed++
			continue
		}
		res.Sent++
	}
	res.Elapsed = time.Since(start)
	if secs := res.Elapsed.Seconds(); secs > 0 {
		res.Rate = float64(res.Sent) / secs
	}
	p.logger.Info("race burst sent", "url", url, "sent", res.Sent, "failed", res.Failed, "elapsed", res.Elapsed)

	sleep(ctx, p.opts.ResponseWindow)
	res.Responses = in.all()
	res.Unique = countUnique(res.Responses)
	return res, nil
}

// countUnique tallies identical responses in first-seen order.
func countUnique(responses []string) []ResponseCount {
	counts := orderedmap.New[string, int]()
	for _, r := range responses {
		n, _ := counts.Get(r)
		counts.Set(r, n+1)
	}
	out := make([]ResponseCount, 0, counts.Len())
	for pair := counts.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, ResponseCount{Text: pair.Key, Count: pair.Value})
	}
	return out
}

// Enumerate tries each known Socket.IO event or namespace and reports the
// ones the server responded to.
func (p *Prober) Enumerate(ctx context.Context, url string, kind EnumKind) (EnumResult, error) {
	template, set := eventTemplate, eventSet
	switch kind {
	case EnumEvents:
	case EnumNamespaces:
		template, set = namespaceTemplate, namespaceSet
	default:
		return EnumResult{}, domain.NewDomainError("Prober.Enumerate", domain.ErrInvalidInput, fmt.Sprintf("unknown kind %q", kind))
	}
	items, err := p.catalog.Get(set)
	if err != nil {
		return EnumResult{}, err
	}

	// Frames that arrive before the driver exists precede any send.
	var driver *Driver
	var mu sync.Mutex
	conn, err := p.open(ctx, url, func(text string) {
		mu.Lock()
		d := driver
		mu.Unlock()
		if d != nil {
			d.HandleResponse(text)
		}
	})
	if err != nil {
		return EnumResult{}, err
	}
	defer conn.Disconnect()
	sleep(ctx, p.opts.EnumSettle)

	cfg := DefaultConfig()
	cfg.ReconnectWait = p.opts.Settle
	mu.Lock()
	driver = NewDriver(conn, cfg, p.logger, p.bus)
	mu.Unlock()

	// Raw protocol filters only keepalive tokens, so namespace connect
	// acks count as findings.
	job := Job{
		Template: template,
		Markers:  []string{"item"},
		Payloads: items,
		Delay:    p.opts.EnumDelay,
		Protocol: domain.ProtocolRaw,
	}
	results, runErr := driver.Run(ctx, job, nil)
	if runErr == nil {
		sleep(ctx, p.opts.ResponseWindow)
	}

	res := EnumResult{Kind: kind, Tested: len(results), Results: results}
	for _, r := range driver.Responses() {
		res.Findings = append(res.Findings, Finding{
			Item:     r.Payload,
			Frame:    results[r.Index].Frame,
			Response: r.Text,
		})
	}
	p.logger.Info("enumeration finished", "kind", string(kind), "tested", res.Tested, "findings", len(res.Findings))
	return res, runErr
}
