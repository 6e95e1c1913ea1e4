package refinement

import (
	"math"
	"sort"
)

// Segment is a contiguous interval of the real line, open or closed at
// each end.
type Segment struct {
	Min, Max               float64
	MinInclusive, MaxInclusive bool
}

// FullSegment spans every number.
func FullSegment() Segment {
	return Segment{Min: math.Inf(-1), Max: math.Inf(1), MinInclusive: false, MaxInclusive: false}
}

func (s Segment) isEmpty() bool {
	if s.Min > s.Max {
		return true
	}
	if s.Min == s.Max {
		return !(s.MinInclusive && s.MaxInclusive)
	}
	return false
}

func (s Segment) contains(v float64) bool {
	lowOK := v > s.Min || (s.MinInclusive && v == s.Min)
	highOK := v < s.Max || (s.MaxInclusive && v == s.Max)
	return lowOK && highOK
}

func (s Segment) overlaps(o Segment) bool {
	return s.Min < o.Max && o.Min < s.Max ||
		(s.Min == o.Max && s.MinInclusive && o.MaxInclusive) ||
		(o.Min == s.Max && o.MinInclusive && s.MaxInclusive)
}

func (s Segment) touches(o Segment) bool {
	return s.overlaps(o) ||
		(s.Max == o.Min && (s.MaxInclusive || o.MinInclusive)) ||
		(o.Max == s.Min && (o.MaxInclusive || s.MinInclusive))
}

func (s Segment) union(o Segment) Segment {
	out := Segment{}
	if s.Min < o.Min {
		out.Min, out.MinInclusive = s.Min, s.MinInclusive
	} else if o.Min < s.Min {
		out.Min, out.MinInclusive = o.Min, o.MinInclusive
	} else {
		out.Min, out.MinInclusive = s.Min, s.MinInclusive || o.MinInclusive
	}
	if s.Max > o.Max {
		out.Max, out.MaxInclusive = s.Max, s.MaxInclusive
	} else if o.Max > s.Max {
		out.Max, out.MaxInclusive = o.Max, o.MaxInclusive
	} else {
		out.Max, out.MaxInclusive = s.Max, s.MaxInclusive || o.MaxInclusive
	}
	return out
}

func (s Segment) intersect(o Segment) (Segment, bool) {
	out := Segment{}
	if s.Min > o.Min {
		out.Min, out.MinInclusive = s.Min, s.MinInclusive
	} else if o.Min > s.Min {
		out.Min, out.MinInclusive = o.Min, o.MinInclusive
	} else {
		out.Min, out.MinInclusive = s.Min, s.MinInclusive && o.MinInclusive
	}
	if s.Max < o.Max {
		out.Max, out.MaxInclusive = s.Max, s.MaxInclusive
	} else if o.Max < s.Max {
		out.Max, out.MaxInclusive = o.Max, o.MaxInclusive
	} else {
		out.Max, out.MaxInclusive = s.Max, s.MaxInclusive && o.MaxInclusive
	}
	if out.isEmpty() {
		return Segment{}, false
	}
	return out, true
}

// Range is a set of numbers expressed as a sorted, pairwise-disjoint,
// non-touching list of Segments.
type Range struct {
	Segments []Segment
}

// EmptyRange returns a Range containing no numbers.
func EmptyRange() Range {
	return Range{}
}

// UniverseRange returns a Range containing every number.
func UniverseRange() Range {
	return Range{Segments: []Segment{FullSegment()}}
}

// NewRange builds a Range from arbitrary (possibly overlapping,
// unsorted) segments, normalizing them into canonical form.
func NewRange(segments ...Segment) Range {
	return Range{}.union(Range{Segments: segments})
}

func (r Range) normalize() Range {
	segs := make([]Segment, 0, len(r.Segments))
	for _, s := range r.Segments {
		if !s.isEmpty() {
			segs = append(segs, s)
		}
	}
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].Min != segs[j].Min {
			return segs[i].Min < segs[j].Min
		}
		return segs[i].MinInclusive && !segs[j].MinInclusive
	})

	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if len(out) == 0 {
			out = append(out, s)
			continue
		}
		last := &out[len(out)-1]
		if last.touches(s) {
			*last = last.union(s)
		} else {
			out = append(out, s)
		}
	}
	return Range{Segments: out}
}

// Union returns the set union of r and other.
func (r Range) union(other Range) Range {
	combined := append(append([]Segment{}, r.Segments...), other.Segments...)
	return Range{Segments: combined}.normalize()
}

// Union returns the set union of r and other.
func (r Range) Union(other Range) Range {
	return r.union(other)
}

// Intersect returns the set intersection of r and other.
func (r Range) Intersect(other Range) Range {
	var out []Segment
	for _, a := range r.Segments {
		for _, b := range other.Segments {
			if seg, ok := a.intersect(b); ok {
				out = append(out, seg)
			}
		}
	}
	return Range{Segments: out}.normalize()
}

// Complement returns every number not in r.
func (r Range) Complement() Range {
	return UniverseRange().Difference(r)
}

// Difference returns the numbers in r that are not in other.
func (r Range) Difference(other Range) Range {
	result := r.normalize()
	for _, b := range other.Segments {
		var next []Segment
		for _, a := range result.Segments {
			next = append(next, subtractSegment(a, b)...)
		}
		result = Range{Segments: next}.normalize()
	}
	return result
}

func subtractSegment(a, b Segment) []Segment {
	inter, ok := a.intersect(b)
	if !ok {
		return []Segment{a}
	}
	var out []Segment
	if a.Min < inter.Min || (a.Min == inter.Min && a.MinInclusive && !inter.MinInclusive) {
		out = append(out, Segment{Min: a.Min, MinInclusive: a.MinInclusive, Max: inter.Min, MaxInclusive: !inter.MinInclusive})
	}
	if a.Max > inter.Max || (a.Max == inter.Max && a.MaxInclusive && !inter.MaxInclusive) {
		out = append(out, Segment{Min: inter.Max, MinInclusive: !inter.MaxInclusive, Max: a.Max, MaxInclusive: a.MaxInclusive})
	}
	return out
}

// IsSubsetOf reports whether every number in r is also in other.
func (r Range) IsSubsetOf(other Range) bool {
	return r.Difference(other).IsEmpty()
}

// IsEmpty reports whether r contains no numbers.
func (r Range) IsEmpty() bool {
	return len(r.normalize().Segments) == 0
}

// Contains reports whether v falls within r.
func (r Range) Contains(v float64) bool {
	for _, s := range r.Segments {
		if s.contains(v) {
			return true
		}
	}
	return false
}

// DeriveRange walks a normalized boolean expression and computes the
// set of values of field that satisfy it, for the subset of
// expressions that constrain a single numeric field with AND/OR of
// comparisons against literals. It returns an error if expr contains a
// construct it cannot reduce to a Range (e.g. a comparison between two
// fields).
func DeriveRange(expr Expr, field string) (Range, error) {
	switch e := expr.(type) {
	case *BoolLit:
		if e.Value {
			return UniverseRange(), nil
		}
		return EmptyRange(), nil

	case *UnaryExpr:
		if e.Op != OpNot {
			return Range{}, errUnsupported(expr)
		}
		inner, err := DeriveRange(e.Expr, field)
		if err != nil {
			return Range{}, err
		}
		return inner.Complement(), nil

	case *BinaryExpr:
		if e.Op.isLogical() {
			left, err := DeriveRange(e.Left, field)
			if err != nil {
				return Range{}, err
			}
			right, err := DeriveRange(e.Right, field)
			if err != nil {
				return Range{}, err
			}
			if e.Op == OpAnd {
				return left.Intersect(right), nil
			}
			return left.Union(right), nil
		}
		if e.Op.isComparison() {
			return comparisonRange(e, field)
		}
		return Range{}, errUnsupported(expr)

	default:
		return Range{}, errUnsupported(expr)
	}
}

func comparisonRange(e *BinaryExpr, field string) (Range, error) {
	ref, ok := e.Left.(*FieldRef)
	if !ok || ref.Name != field {
		return Range{}, errUnsupported(e)
	}
	lit, ok := e.Right.(*NumberLit)
	if !ok {
		return Range{}, errUnsupported(e)
	}
	v := lit.Value

	switch e.Op {
	case OpEq:
		return NewRange(Segment{Min: v, Max: v, MinInclusive: true, MaxInclusive: true}), nil
	case OpNeq:
		return NewRange(Segment{Min: v, Max: v, MinInclusive: true, MaxInclusive: true}).Complement(), nil
	case OpLt:
		return NewRange(Segment{Min: math.Inf(-1), Max: v, MaxInclusive: false}), nil
	case OpLte:
		return NewRange(Segment{Min: math.Inf(-1), Max: v, MaxInclusive: true}), nil
	case OpGt:
		return NewRange(Segment{Min: v, MinInclusive: false, Max: math.Inf(1)}), nil
	case OpGte:
		return NewRange(Segment{Min: v, MinInclusive: true, Max: math.Inf(1)}), nil
	default:
		return Range{}, errUnsupported(e)
	}
}

func errUnsupported(e Expr) error {
	return &UnsupportedExprError{Expr: e}
}

// UnsupportedExprError is returned by DeriveRange when an expression
// cannot be reduced to a single-field Range.
type UnsupportedExprError struct {
	Expr Expr
}

func (u *UnsupportedExprError) Error() string {
	return "refinement: cannot derive a range from expression: " + u.Expr.String()
}
