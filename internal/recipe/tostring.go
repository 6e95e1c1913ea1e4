package recipe

import (
	"fmt"
	"strings"
)

// localNames assigns a stable synthetic name (particleN/handleN/slotN)
// to every node lacking one of its own, in arena order, so ToString's
// output never depends on anything but the recipe's own canonical
// node order.
type localNames struct {
	particle map[int]string
	handle   map[int]string
	slot     map[int]string
}

func buildLocalNames(r *Recipe) *localNames {
	ln := &localNames{
		particle: make(map[int]string, len(r.Particles)),
		handle:   make(map[int]string, len(r.Handles)),
		slot:     make(map[int]string, len(r.Slots)),
	}
	n := 0
	for _, p := range r.Particles {
		if p.Name != "" {
			ln.particle[p.Index] = p.Name
			continue
		}
		ln.particle[p.Index] = fmt.Sprintf("particle%d", n)
		n++
	}
	n = 0
	for _, h := range r.Handles {
		if h.ID != "" {
			ln.handle[h.Index] = h.ID
			continue
		}
		ln.handle[h.Index] = fmt.Sprintf("handle%d", n)
		n++
	}
	n = 0
	for _, s := range r.Slots {
		if s.Name != "" {
			ln.slot[s.Index] = s.Name
			continue
		}
		ln.slot[s.Index] = fmt.Sprintf("slot%d", n)
		n++
	}
	return ln
}

// ToString renders the deterministic textual form of r: stable given
// r's canonical (post-Normalize) node order, and detailed enough to be
// fed back to a parser. Callers needing a canonical digest should
// Normalize r first — ToString on an unfrozen recipe is still
// deterministic for a fixed in-memory arena order, but that order is
// only canonical once frozen.
func (r *Recipe) ToString() string {
	names := buildLocalNames(r)
	var b strings.Builder

	fmt.Fprintf(&b, "recipe")
	if r.Name != "" {
		fmt.Fprintf(&b, " %s", r.Name)
	}
	b.WriteString("\n")

	for _, h := range r.Handles {
		fmt.Fprintf(&b, "  %s = handle %s %s storageKey:%s\n",
			names.handle[h.Index], h.Type, h.Fate, h.StorageKey)
	}

	for _, s := range r.Slots {
		provider := "?"
		if s.ProvidedByIdx >= 0 {
			provider = names.particle[s.ProvidedByIdx]
		}
		fmt.Fprintf(&b, "  %s = slot providedBy:%s\n", names.slot[s.Index], provider)
	}

	for _, p := range r.Particles {
		fmt.Fprintf(&b, "  particle %s as %s\n", names.particle[p.Index], p.SpecName)
		for _, c := range p.Connections {
			fmt.Fprintf(&b, "    %s %s %s\n", c.Name, c.Mode, names.handle[c.HandleIdx])
		}
		for _, sc := range p.ConsumedSlots {
			fmt.Fprintf(&b, "    consume %s as %s\n", sc.Name, names.slot[sc.SlotIdx])
		}
	}

	if len(r.Verbs) > 0 {
		fmt.Fprintf(&b, "  verbs: %s\n", strings.Join(r.Verbs, ", "))
	}
	if len(r.Patterns) > 0 {
		fmt.Fprintf(&b, "  patterns: %s\n", strings.Join(r.Patterns, ", "))
	}
	if r.Search != nil {
		fmt.Fprintf(&b, "  search %q resolved:%t\n", r.Search.Phrase, r.Search.Resolved)
	}

	return b.String()
}
