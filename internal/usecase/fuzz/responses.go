package fuzz

import (
	"time"

	"wsfuzz/internal/adapter/codec"
)

// Response is an inbound frame attributed to a sent payload.
type Response struct {
	Index   int       `json:"index"`
	Payload string    `json:"payload"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// OnResponse registers a callback for correlated responses.
func (d *Driver) OnResponse(h func(Response)) {
	d.correlator.mu.Lock()
	d.correlator.onResponse = h
	d.correlator.mu.Unlock()
}

// HandleResponse attributes an inbound frame to the last payload sent.
// Control frames and frames arriving before the first send are ignored.
func (d *Driver) HandleResponse(text string) {
	c := &d.correlator
	c.mu.Lock()
	index, payload, proto := c.lastIndex, c.lastPayload, c.protocol
	c.mu.Unlock()
	if index < 0 {
		return
	}
	if codec.Decode(text, proto).IsControl {
		return
	}

	r := Response{Index: index, Payload: payload, Text: text, At: time.Now()}
	c.mu.Lock()
	c.responses = append(c.responses, r)
	h := c.onResponse
	c.mu.Unlock()
	if h != nil {
		h(r)
	}
}

// Responses returns the responses correlated during the current or last run.
func (d *Driver) Responses() []Response {
	d.correlator.mu.Lock()
	defer d.correlator.mu.Unlock()
	return append([]Response(nil), d.correlator.responses...)
}
