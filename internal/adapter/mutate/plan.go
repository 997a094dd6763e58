package mutate

// Plan describes where a payload goes in a template. Markers take precedence
// over Fields when both are set.
type Plan struct {
	Template string
	Fields   []string
	Markers  []string
	Encoding Encoding
}

// Render produces the concrete frame for payload.
func (p Plan) Render(payload string) string {
	value := p.Encoding.Apply(payload)
	if len(p.Markers) > 0 {
		out := p.Template
		for _, m := range p.Markers {
			out = ReplaceMarker(out, m, value)
		}
		return out
	}
	return ReplaceFields(p.Template, p.Fields, value)
}

// MarkerMode reports whether the plan substitutes markers.
func (p Plan) MarkerMode() bool {
	return len(p.Markers) > 0
}
