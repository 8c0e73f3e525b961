// Package ports implements the Input/Output port pair and the Link that
// connects them, exactly as specified in §4.3/§4.4: Outputs are passive
// data holders, Inputs aggregate incoming Links, and a Link optionally
// carries a FIFO of past Output buffers to model propagation delay.
//
// The delay queue is built on github.com/sarchlab/akita/v4/sim.Buffer,
// the same fixed-capacity FIFO primitive the teacher repo uses for port
// buffering — here repurposed to hold delayed copies of a producer's
// Array instead of in-flight messages.
package ports

import (
	"fmt"

	"github.com/chhenning/flowengine/array"
	"github.com/chhenning/flowengine/flowerr"
	"github.com/chhenning/flowengine/regionspec"
	"github.com/sarchlab/akita/v4/sim"
)

// Output is the producer side of a port: a named, typed Array mutated in
// place by the owning Region's compute. It tracks outbound links only to
// answer HasOutgoingLinks — it never observes what its consumers do.
type Output struct {
	RegionName string
	Name       string
	ElemType   array.ElementType
	Array      *array.Array

	outbound []*Link
}

// NewOutput constructs an empty (zero-length) Output; its Array is sized
// later by Region.InitOutputs.
func NewOutput(regionName, name string, t array.ElementType) *Output {
	return &Output{RegionName: regionName, Name: name, ElemType: t, Array: array.New(t, 0)}
}

// HasOutgoingLinks reports whether any Link currently sources from this
// Output.
func (o *Output) HasOutgoingLinks() bool { return len(o.outbound) > 0 }

// OutgoingLinks returns the Links sourced from this Output, in the order
// they were attached.
func (o *Output) OutgoingLinks() []*Link {
	out := make([]*Link, len(o.outbound))
	copy(out, o.outbound)
	return out
}

func (o *Output) attach(l *Link) { o.outbound = append(o.outbound, l) }

func (o *Output) detach(l *Link) {
	for i, x := range o.outbound {
		if x == l {
			o.outbound = append(o.outbound[:i], o.outbound[i+1:]...)
			return
		}
	}
}

// Input is the consumer side of a port: a named, typed Array that
// aggregates the contributions of one or more incoming Links, in the
// order addLink was called.
type Input struct {
	RegionName string
	Name       string
	ElemType   array.ElementType
	Array      *array.Array
	Required   bool

	// links holds the incoming Links in the order AddLink attached them.
	links []*Link

	// RegionInitialized is set by the owning Region so RemoveLink can
	// enforce §4.3's "allowed only when the owning Region is not
	// initialized" rule without Input importing the region package.
	RegionInitialized func() bool
}

// NewInput constructs an empty Input; its Array is sized later by
// Region.InitInputs.
func NewInput(regionName, name string, t array.ElementType, required bool) *Input {
	return &Input{RegionName: regionName, Name: name, ElemType: t, Array: array.New(t, 0), Required: required}
}

// AddLink attaches a Link to this Input, at the end of the link order,
// and records the corresponding attachment on the source Output.
func (in *Input) AddLink(l *Link) error {
	if len(in.links) > 0 && !l.Policy.AllowsFanIn() {
		return fmt.Errorf("ports: input %s.%s: %w", in.RegionName, in.Name, flowerr.ErrLinkFanInUnsupported)
	}
	in.links = append(in.links, l)
	l.dst = in
	l.Src.attach(l)
	return nil
}

// RemoveLink detaches a Link from this Input. Fails if the owning region
// is still initialized.
func (in *Input) RemoveLink(l *Link) error {
	if in.RegionInitialized != nil && in.RegionInitialized() {
		return fmt.Errorf("ports: input %s.%s: %w", in.RegionName, in.Name, flowerr.ErrRegionInitialized)
	}
	for i, x := range in.links {
		if x == l {
			in.links = append(in.links[:i], in.links[i+1:]...)
			l.Src.detach(l)
			return nil
		}
	}
	return fmt.Errorf("ports: input %s.%s: %w", in.RegionName, in.Name, flowerr.ErrNoSuchLink)
}

// FindLink returns the link from (srcRegionName, srcOutputName) to this
// Input, or nil if none is attached.
func (in *Input) FindLink(srcRegionName, srcOutputName string) *Link {
	for _, l := range in.links {
		if l.Src.RegionName == srcRegionName && l.Src.Name == srcOutputName {
			return l
		}
	}
	return nil
}

// GetLinks returns the Links feeding this Input, in attachment order.
func (in *Input) GetLinks() []*Link {
	out := make([]*Link, len(in.links))
	copy(out, in.links)
	return out
}

// PrepareInputs copies the head of every incoming Link's delay queue (or,
// for zero-delay links, the producer's current Output) into this Input's
// Array at the offset the link's fan-in policy reserves for it.
func (in *Input) PrepareInputs() {
	if len(in.links) == 0 {
		return
	}
	for _, l := range in.links {
		offset := l.Policy.Offset(in, l)
		head := l.Head()
		l.Policy.Copy(in.Array, offset, head)
	}
}

// FanInPolicy determines how a Link's data is placed into the
// destination Input's buffer, and whether a given Input accepts a second
// incoming Link. A Link's policy is passed to NewLink explicitly; the
// Link's linkType string is stored and persisted but does not select the
// policy.
type FanInPolicy interface {
	// Name identifies the policy; Save persists it under the "policy" key
	// and Load looks the policy up by it.
	Name() string
	// AllowsFanIn reports whether a second link may be added to the same
	// Input.
	AllowsFanIn() bool
	// Offset returns the element offset into dst.Array at which l's
	// contribution should be copied.
	Offset(dst *Input, l *Link) int
	// Copy writes src's contents into dst starting at offset.
	Copy(dst *array.Array, offset int, src *array.Array)
	// RequiredInputCount returns how many elements this link contributes
	// to its destination Input, given the producer's Output element
	// count.
	RequiredInputCount(producerCount int) int
}

// Identity1to1 is the built-in 1:1 fan-in policy: a single link copies
// its producer's buffer verbatim into the (necessarily single) Input it
// feeds.
type Identity1to1 struct{}

func (Identity1to1) Name() string          { return "identity1to1" }
func (Identity1to1) AllowsFanIn() bool     { return false }
func (Identity1to1) Offset(*Input, *Link) int { return 0 }
func (Identity1to1) Copy(dst *array.Array, offset int, src *array.Array) {
	copyAt(dst, offset, src)
}
func (Identity1to1) RequiredInputCount(producerCount int) int { return producerCount }

// Concat is an additional fan-in policy (§0.1 domain-stack enrichment):
// it concatenates same-typed contributions from multiple incoming links,
// in the order addLink was called, giving multi-link Inputs a concrete
// fan-in behavior.
type Concat struct{}

func (Concat) Name() string      { return "concat" }
func (Concat) AllowsFanIn() bool { return true }
func (Concat) Offset(dst *Input, l *Link) int {
	offset := 0
	for _, x := range dst.links {
		if x == l {
			break
		}
		offset += x.Src.Array.Count()
	}
	return offset
}
func (Concat) Copy(dst *array.Array, offset int, src *array.Array) {
	copyAt(dst, offset, src)
}
func (Concat) RequiredInputCount(producerCount int) int { return producerCount }

func copyAt(dst *array.Array, offset int, src *array.Array) {
	if src == nil {
		return
	}
	if dst.ElementType() != src.ElementType() {
		panic(fmt.Sprintf("ports: copy element type mismatch: %v != %v", dst.ElementType(), src.ElementType()))
	}
	n := src.Count()
	if offset+n > dst.Count() {
		panic(fmt.Sprintf("ports: copy out of range: offset %d + n %d > dst count %d", offset, n, dst.Count()))
	}
	copy(dst.Bytes()[offsetBytes(dst, offset):], src.Bytes())
}

func offsetBytes(a *array.Array, elemOffset int) int {
	if a.Count() == 0 {
		return 0
	}
	return elemOffset * (len(a.Bytes()) / a.Count())
}

// Link is a directed, typed pipe from a source Output to a destination
// Input, optionally delayed by a FIFO of N past Output snapshots.
type Link struct {
	LinkType         string
	LinkParams       string
	Src              *Output
	dst              *Input
	PropagationDelay int
	Policy           FanInPolicy

	delayQueue sim.Buffer // capacity == PropagationDelay; nil when PropagationDelay == 0
}

// NewLink constructs a Link from src with the given policy and
// propagation delay, initializing the delay queue to PropagationDelay
// zero-filled arrays sized like src's current Array. It does not check
// element types (see ValidateElementTypes) or fan-in eligibility (checked
// by Input.AddLink, which also sets the destination).
func NewLink(linkType, linkParams string, src *Output, delay int, policy FanInPolicy) (*Link, error) {
	if delay < 0 {
		panic("ports: negative propagation delay")
	}
	l := &Link{
		LinkType:         linkType,
		LinkParams:       linkParams,
		Src:              src,
		PropagationDelay: delay,
		Policy:           policy,
	}
	if delay > 0 {
		l.delayQueue = sim.NewBuffer(fmt.Sprintf("%s.%s->delay", src.RegionName, src.Name), delay)
		for i := 0; i < delay; i++ {
			l.delayQueue.Push(array.New(src.ElemType, src.Array.Count()))
		}
	}
	return l, nil
}

// Dst returns the destination Input, or nil before AddLink attaches it.
func (l *Link) Dst() *Input { return l.dst }

// ResizeDelayQueue re-fills the delay queue with zero-filled snapshots
// sized to the source Output's current element count; a queue whose head
// snapshot already has that count is left untouched. Called by
// Network.initialize after every Region's outputs have been sized
// (Region.InitOutputs), since a Link may be constructed before its
// source Output's final size is known.
func (l *Link) ResizeDelayQueue() {
	if l.PropagationDelay == 0 {
		return
	}
	want := l.Src.Array.Count()
	if l.delayQueue != nil {
		item := l.delayQueue.Peek()
		if item != nil && item.(*array.Array).Count() == want {
			return
		}
	}
	l.delayQueue = sim.NewBuffer(fmt.Sprintf("%s.%s->delay", l.Src.RegionName, l.Src.Name), l.PropagationDelay)
	for i := 0; i < l.PropagationDelay; i++ {
		l.delayQueue.Push(array.New(l.Src.ElemType, want))
	}
}

// Head returns the Array a consumer should observe right now: for a
// zero-delay link this is the producer's current Output buffer; for a
// delayed link it is the oldest queued snapshot.
func (l *Link) Head() *array.Array {
	if l.PropagationDelay == 0 {
		return l.Src.Array
	}
	item := l.delayQueue.Peek()
	if item == nil {
		return nil
	}
	return item.(*array.Array)
}

// ShiftBufferedData is the end-of-iteration commit: it enqueues a copy of
// the producer's current Output and drops the oldest queued snapshot. A
// no-op for zero-delay links.
func (l *Link) ShiftBufferedData() {
	if l.PropagationDelay == 0 {
		return
	}
	l.delayQueue.Pop()
	l.delayQueue.Push(l.Src.Array.Clone())
}

// QueuedSnapshots returns the delay queue contents, oldest first,
// excluding the newest slot (per §4.4's serialization rule: the newest
// slot equals the source Output's current buffer, which is saved by the
// source Region itself). Returns nil for a zero-delay link.
func (l *Link) QueuedSnapshots() []*array.Array {
	if l.PropagationDelay == 0 {
		return nil
	}
	all := l.allQueued()
	if len(all) == 0 {
		return nil
	}
	return all[:len(all)-1]
}

// RestoreQueuedSnapshots rebuilds the delay queue from persisted
// snapshots (oldest first, newest slot excluded per QueuedSnapshots).
// The placeholder(s) for the excluded newest slot go in ahead of the
// real snapshots, not after: the caller's mandatory follow-up
// ShiftBufferedData call (per §4.7 load step 6) pops the current head
// to make room for the restored source Output's buffer, so the head
// must be the placeholder, not a real oldest value, or that value is
// discarded and the whole queue shifts one slot stale.
func (l *Link) RestoreQueuedSnapshots(snapshots []*array.Array) {
	if l.PropagationDelay == 0 {
		return
	}
	l.delayQueue = sim.NewBuffer(fmt.Sprintf("%s.%s->delay", l.Src.RegionName, l.Src.Name), l.PropagationDelay)
	for l.delayQueue.Size() < l.PropagationDelay-len(snapshots) {
		l.delayQueue.Push(array.New(l.Src.ElemType, l.Src.Array.Count()))
	}
	for _, s := range snapshots {
		l.delayQueue.Push(s)
	}
}

func (l *Link) allQueued() []*array.Array {
	if l.delayQueue == nil {
		return nil
	}
	n := l.delayQueue.Size()
	out := make([]*array.Array, 0, n)
	for i := 0; i < n; i++ {
		item := l.delayQueue.Pop()
		a := item.(*array.Array)
		out = append(out, a)
		l.delayQueue.Push(a)
	}
	return out
}

// ValidateElementTypes checks src and dst element types agree, returning
// flowerr.ErrLinkTypeMismatch if not.
func ValidateElementTypes(srcType, dstType array.ElementType) error {
	if srcType != dstType {
		return fmt.Errorf("ports: src type %v, dst type %v: %w", srcType, dstType, flowerr.ErrLinkTypeMismatch)
	}
	return nil
}

// RequiredInputCount sums, over a set of incoming links, the element
// contribution each one's fan-in policy demands — this is how
// Region.InitInputs sizes a multi-link Input.
func RequiredInputCount(links []*Link) int {
	total := 0
	for _, l := range links {
		total += l.Policy.RequiredInputCount(l.Src.Array.Count())
	}
	return total
}

// ResolvePortName resolves an empty port name to a RegionSpec's default
// input/output name. Returns name unchanged if non-empty, and "" if no
// default is declared.
func ResolvePortName(name string, isInput bool, spec *regionspec.RegionSpec) string {
	if name != "" {
		return name
	}
	if isInput {
		return spec.DefaultInputName()
	}
	return spec.DefaultOutputName()
}
