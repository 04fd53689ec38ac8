package netlist

import (
	"fmt"
	"strings"
)

// resolve settles instance pins of unknown direction. In source order, a pin
// becomes the driver of its signal when nothing else drives the same bits,
// otherwise it reads the signal.
func (b *builder) resolve() {
	out := make(map[string]bool)
	for _, p := range b.pending {
		s := b.sigs[p.sig]
		ep := p.ep
		ep.Inferred = true
		driven := false
		for _, d := range s.Drivers {
			if d.Slice.Overlaps(ep.Slice) {
				driven = true
				break
			}
		}
		key := ep.Node + "." + ep.Pin
		if driven {
			s.Loads = append(s.Loads, ep)
		} else {
			s.Drivers = append(s.Drivers, ep)
			out[key] = true
		}
	}
	if len(b.pending) == 0 {
		return
	}
	b.flow.reindex()
	seen := make(map[string]bool)
	for _, p := range b.pending {
		key := p.ep.Node + "." + p.ep.Pin
		if seen[key] {
			continue
		}
		seen[key] = true
		n := b.flow.Node(p.ep.Node)
		if n == nil {
			continue
		}
		for i := range n.Pins {
			if n.Pins[i].Name != p.ep.Pin {
				continue
			}
			n.Pins[i].Inferred = true
			n.Pins[i].Dir = DirIn
			if out[key] {
				n.Pins[i].Dir = DirOut
			}
			b.diag("inferred_direction", SeverityInfo, n.Line, p.sig,
				"instance %s: pin %s of %s assumed %s", n.Name, p.ep.Pin, n.Module, n.Pins[i].Dir)
		}
	}
}

// exempt reports whether a signal may legally carry several drivers.
func exempt(s *Signal) bool {
	for _, k := range []string{s.Kind, s.NetType} {
		if strings.HasPrefix(k, "tri") || strings.HasPrefix(k, "supply") || k == "wand" || k == "wor" {
			return true
		}
	}
	return false
}

func supply(s *Signal) string {
	for _, k := range []string{s.Kind, s.NetType} {
		if k == "supply0" || k == "supply1" {
			return k
		}
	}
	return ""
}

func sameEndpoint(a, b Endpoint) bool {
	return a.Node == b.Node && a.Pin == b.Pin
}

// materialize turns the driver and load lists of every signal into edges.
func (b *builder) materialize() {
	for _, s := range b.flow.Signals {
		s.Drivers = mergeEndpoints(s.Drivers)
		s.Loads = mergeEndpoints(s.Loads)
		conflict := b.conflicts(s)
		b.edges(s, conflict)
	}
	b.flow.Edges = append(b.flow.Edges, b.direct...)
}

// mergeEndpoints folds references of one node pin to the same signal into
// one endpoint when their slices overlap or touch, so a block writing both
// q and q[0] is a single driver of q.
func mergeEndpoints(eps []Endpoint) []Endpoint {
	out := make([]Endpoint, 0, len(eps))
	for _, ep := range eps {
		out = append(out, ep)
		for merged := true; merged; {
			merged = false
			last := len(out) - 1
			for i := 0; i < last; i++ {
				if !sameEndpoint(out[i], out[last]) || out[i].Bidir != out[last].Bidir || !adjoins(out[i].Slice, out[last].Slice) {
					continue
				}
				out[i] = union(out[i], out[last])
				out = out[:last]
				// the widened endpoint may now touch another one
				out[i], out[len(out)-1] = out[len(out)-1], out[i]
				merged = true
				break
			}
		}
	}
	return out
}

// adjoins reports whether two slices overlap or sit next to each other.
func adjoins(a, b Slice) bool {
	if !a.Known || !b.Known {
		return true
	}
	return a.Lo <= b.Hi+1 && b.Lo <= a.Hi+1
}

func union(a, b Endpoint) Endpoint {
	out := a
	switch {
	case !a.Slice.Known:
	case !b.Slice.Known:
		out.Slice, out.Text = b.Slice, b.Text
	default:
		out.Slice = BitRange(max(a.Slice.Hi, b.Slice.Hi), min(a.Slice.Lo, b.Slice.Lo))
		switch out.Slice {
		case a.Slice:
		case b.Slice:
			out.Text = b.Text
		default:
			out.Text = ""
		}
	}
	if out.Slice.Known {
		out.Width = out.Slice.Width()
	} else {
		out.Width = max(a.Width, b.Width)
	}
	if out.Line == 0 || (b.Line > 0 && b.Line < out.Line) {
		out.Line = b.Line
	}
	out.Inferred = a.Inferred || b.Inferred
	if out.Mismatch == "" {
		out.Mismatch = b.Mismatch
	}
	return out
}

// conflicts returns the drivers of s that overlap another driver.
func (b *builder) conflicts(s *Signal) map[int]bool {
	if exempt(s) {
		return nil
	}
	var bad map[int]bool
	for i := 0; i < len(s.Drivers); i++ {
		for j := i + 1; j < len(s.Drivers); j++ {
			di, dj := s.Drivers[i], s.Drivers[j]
			if di.Bidir || dj.Bidir || sameEndpoint(di, dj) || !di.Slice.Overlaps(dj.Slice) {
				continue
			}
			if bad == nil {
				bad = make(map[int]bool)
			}
			bad[i], bad[j] = true, true
		}
	}
	if len(bad) > 0 {
		var names []string
		line := s.Line
		for i, d := range s.Drivers {
			if bad[i] {
				names = append(names, b.describe(d))
				if line == s.Line && d.Line > 0 {
					line = d.Line
				}
			}
		}
		b.diag("multiple_drivers", SeverityError, line, s.Name,
			"%s has %d overlapping drivers: %s", s.Name, len(names), strings.Join(names, ", "))
	}
	return bad
}

func (b *builder) describe(ep Endpoint) string {
	if ep.Pin != "" {
		return ep.Node + "." + ep.Pin
	}
	return ep.Node
}

// label names the bits an edge carries. A reference with an unknown slice
// is shown as written.
func label(s *Signal, d, l Endpoint) string {
	switch {
	case !l.Slice.Known && l.Text != "":
		return l.Text
	case !d.Slice.Known && d.Text != "":
		return d.Text
	}
	sl := d.Slice.Intersect(l.Slice)
	if !sl.Known || (s.Range.Known && sl == s.Range) {
		return s.Name
	}
	return s.Name + sl.String()
}

func edgeWidth(d, l Endpoint) int {
	switch {
	case d.Slice.Known && l.Slice.Known:
		return d.Slice.Intersect(l.Slice).Width()
	case !l.Slice.Known && l.Width > 0:
		return l.Width
	case !d.Slice.Known && d.Width > 0:
		return d.Width
	}
	return max(d.Width, l.Width)
}

func (b *builder) edge(s *Signal, d, l Endpoint, conflict bool) *Edge {
	e := &Edge{
		From:     d.Node,
		FromPin:  d.Pin,
		To:       l.Node,
		ToPin:    l.Pin,
		Signal:   s.Name,
		Label:    label(s, d, l),
		Width:    edgeWidth(d, l),
		Conflict: conflict,
		Inferred: d.Inferred || l.Inferred,
	}
	if note := d.Mismatch + l.Mismatch; note != "" {
		e.Mismatch = true
		e.Note = d.Mismatch
		if e.Note == "" {
			e.Note = l.Mismatch
		}
	}
	return e
}

func (b *builder) keep(d, l Endpoint) bool {
	if d.Bidir && l.Bidir && sameEndpoint(d, l) {
		return false
	}
	return d.Node != l.Node || b.opts.SelfLoops
}

func (b *builder) junction(s *Signal) bool {
	if len(s.Drivers) == 0 || len(s.Loads) == 0 {
		return false
	}
	switch b.opts.NetNodes {
	case NetAlways:
		return true
	case NetNever:
		return false
	}
	return len(s.Loads) > b.opts.FanoutThreshold
}

// edges wires every load to the drivers whose bits it reads, directly or
// through a net junction node. Both paths use the same overlap rule, so the
// undriven and unused checks do not depend on the junction setting.
func (b *builder) edges(s *Signal, conflict map[int]bool) {
	var hub *Endpoint
	if b.junction(s) {
		hub = &Endpoint{Node: "net." + s.Name, Slice: s.Range, Width: s.Width}
	}
	hubUsed := false
	feeds := make(map[int]bool)

	var undriven []Endpoint
	for _, l := range s.Loads {
		served, wired := false, false
		for i, d := range s.Drivers {
			if !d.Slice.Overlaps(l.Slice) {
				continue
			}
			served = true
			if !b.keep(d, l) {
				continue
			}
			if hub == nil {
				b.flow.Edges = append(b.flow.Edges, b.edge(s, d, l, conflict[i]))
				continue
			}
			if d.Bidir && len(s.Drivers) > 1 {
				// an inout port on a net with other drivers only reads it
				continue
			}
			feeds[i] = true
			wired = true
		}
		if !served {
			undriven = append(undriven, l)
			continue
		}
		if wired {
			if !hubUsed {
				b.addNode(&Node{ID: hub.Node, Kind: KindNet, Name: s.Name, Label: s.Name, Line: s.Line})
				hubUsed = true
			}
			b.flow.Edges = append(b.flow.Edges, b.edge(s, *hub, l, false))
		}
	}
	if hubUsed {
		for i, d := range s.Drivers {
			if feeds[i] {
				b.flow.Edges = append(b.flow.Edges, b.edge(s, d, *hub, conflict[i]))
			}
		}
	}
	if len(undriven) > 0 {
		b.undriven(s, undriven)
	}

	if !b.opts.ShowUnused || s.Kind == "output" {
		return
	}
	for _, d := range s.Drivers {
		if d.Bidir {
			continue
		}
		read := false
		for _, l := range s.Loads {
			if l.Slice.Overlaps(d.Slice) && !sameEndpoint(d, l) {
				read = true
				break
			}
		}
		if read {
			continue
		}
		sink := b.addNode(&Node{ID: "unused." + s.Name, Kind: KindUnused, Name: s.Name, Label: s.Name, Line: s.Line})
		b.flow.Edges = append(b.flow.Edges, b.edge(s, d, Endpoint{Node: sink.ID, Slice: d.Slice}, false))
		b.diag("unused_signal", SeverityWarning, d.Line, s.Name, "%s is driven but never read", s.Name)
	}
}

func (b *builder) undriven(s *Signal, loads []Endpoint) {
	if kind := supply(s); kind != "" {
		value := "1'b0"
		if kind == "supply1" {
			value = "1'b1"
		}
		c := b.addNode(&Node{ID: "const." + s.Name, Kind: KindConstant, Name: value, Label: fmt.Sprintf("%s (%s)", s.Name, value), Line: s.Line})
		src := Endpoint{Node: c.ID, Slice: s.Range, Width: s.Width}
		for _, l := range loads {
			b.flow.Edges = append(b.flow.Edges, b.edge(s, src, l, false))
		}
		return
	}
	src := b.addNode(&Node{ID: "undriven." + s.Name, Kind: KindUndriven, Name: s.Name, Label: s.Name, Line: s.Line})
	ep := Endpoint{Node: src.ID, Slice: s.Range, Width: s.Width}
	for _, l := range loads {
		b.flow.Edges = append(b.flow.Edges, b.edge(s, ep, l, false))
	}
	b.diag("undriven_signal", SeverityWarning, loads[0].Line, s.Name, "%s is read but never driven", s.Name)
}
