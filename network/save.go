package network

import (
	"fmt"
	"io"
	"sort"

	"github.com/chhenning/flowengine/array"
	"github.com/chhenning/flowengine/flowerr"
	"github.com/chhenning/flowengine/netio"
	"github.com/chhenning/flowengine/ports"
	"github.com/chhenning/flowengine/region"
	"github.com/rs/xid"
)

// currentVersion is the version this build writes. Load accepts any
// persisted version >= the Builder's configured minVersion.
const currentVersion = 1

var linkPolicies = map[string]ports.FanInPolicy{
	(ports.Identity1to1{}).Name(): ports.Identity1to1{},
	(ports.Concat{}).Name():       ports.Concat{},
}

// Save emits a deterministic textual frame (§4.7): header, version,
// iteration, the Region list, then the Link list.
func (n *Network) Save(w io.Writer) error {
	nw := netio.NewWriter(w)
	frameID := xid.New()

	nw.Ident("Network").Key("frame").Ident(frameID.String())
	nw.Key("version").Int(int64(currentVersion))
	nw.Key("iteration").Int(int64(n.iteration))

	nw.Key("Regions").OpenBracket(len(n.regionOrder))
	for _, name := range n.regionOrder {
		r := n.regions[name]
		if err := saveRegion(nw, r); err != nil {
			return fmt.Errorf("network %q: save region %q: %w", n.name, name, err)
		}
	}
	nw.CloseBracket()

	links := n.allLinksWithDst()
	nw.Key("Links").OpenBracket(len(links))
	for _, l := range links {
		saveLink(nw, l)
	}
	nw.CloseBracket()

	return nw.Flush()
}

func saveRegion(w *netio.Writer, r *region.Region) error {
	bundle, outs, err := r.Serialize()
	if err != nil {
		return err
	}

	w.OpenBrace()
	w.Key("name").Ident(r.Name())
	w.Key("nodeType").Ident(r.NodeType())

	phases := r.Phases()
	w.Key("phases").OpenBracket(len(phases))
	for _, p := range phases {
		w.Int(int64(p))
	}
	w.CloseBracket()

	w.Key("bundle").Bytes(bundle)

	names := make([]string, 0, len(outs))
	for name := range outs {
		names = append(names, name)
	}
	sort.Strings(names)
	w.Key("outputs").OpenBracket(len(names))
	for _, name := range names {
		w.Ident(name)
		writeArray(w, outs[name])
	}
	w.CloseBracket()

	w.CloseBrace()
	return nil
}

func saveLink(w *netio.Writer, l *ports.Link) {
	w.OpenBrace()
	w.Key("linkType").Ident(l.LinkType)
	w.Key("linkParams").Bytes([]byte(l.LinkParams))
	w.Key("policy").Ident(l.Policy.Name())
	w.Key("src").Ident(l.Src.RegionName).Ident(l.Src.Name)
	w.Key("dst").Ident(l.Dst().RegionName).Ident(l.Dst().Name)
	w.Key("delay").Int(int64(l.PropagationDelay))

	snaps := l.QueuedSnapshots()
	w.Key("snapshots").OpenBracket(len(snaps))
	for _, s := range snaps {
		writeArray(w, s)
	}
	w.CloseBracket()
	w.CloseBrace()
}

func writeArray(w *netio.Writer, a *array.Array) {
	w.Int(int64(a.ElementType())).Int(int64(a.Count())).Bytes(a.Bytes())
}

func readArray(r *netio.Reader) (*array.Array, error) {
	et, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	count, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	b, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	a := array.New(array.ElementType(et), int(count))
	copy(a.Bytes(), b)
	return a, nil
}

// allLinksWithDst is allLinks, kept as a distinct name at the call site
// for readability — every Link returned here has a non-nil Dst().
func (n *Network) allLinksWithDst() []*ports.Link { return n.allLinks() }

// Load tears down every existing region, then reconstructs the network
// from a frame previously written by Save (§4.7).
func (n *Network) Load(r io.Reader) error {
	for _, name := range append([]string(nil), n.regionOrder...) {
		name := name
		reg := n.regions[name]
		reg.Uninitialize()
		if err := reg.RemoveAllIncomingLinks(); err != nil {
			return fmt.Errorf("network %q: load: tearing down %q: %w", n.name, name, err)
		}
	}
	n.regions = map[string]*region.Region{}
	n.regionOrder = nil
	n.phaseInfo = nil
	n.initialized = false

	nr := netio.NewReader(r)
	if err := nr.ExpectIdent("Network"); err != nil {
		return fmt.Errorf("network %q: load: %w", n.name, err)
	}
	if err := nr.ExpectKey("frame"); err != nil {
		return fmt.Errorf("network %q: load: %w", n.name, err)
	}
	if _, err := nr.ReadIdent(); err != nil { // frame id, diagnostic only
		return fmt.Errorf("network %q: load: %w", n.name, err)
	}
	if err := nr.ExpectKey("version"); err != nil {
		return fmt.Errorf("network %q: load: %w", n.name, err)
	}
	version, err := nr.ReadInt()
	if err != nil {
		return fmt.Errorf("network %q: load: %w", n.name, err)
	}
	if int(version) < n.minVersion {
		return fmt.Errorf("network %q: load: version %d below minimum %d: %w", n.name, version, n.minVersion, flowerr.ErrUnsupportedVersion)
	}

	if err := nr.ExpectKey("iteration"); err != nil {
		return fmt.Errorf("network %q: load: %w", n.name, err)
	}
	iteration, err := nr.ReadInt()
	if err != nil {
		return fmt.Errorf("network %q: load: %w", n.name, err)
	}
	n.iteration = uint64(iteration)

	if err := n.loadRegions(nr); err != nil {
		return err
	}
	if err := n.loadLinks(nr); err != nil {
		return err
	}

	if err := n.initialize(); err != nil {
		return fmt.Errorf("network %q: load: %w", n.name, err)
	}

	for _, name := range n.regionOrder {
		r := n.regions[name]
		r.PrepareInputs()
		for _, inName := range r.InputNames() {
			in, _ := r.Input(inName)
			for _, l := range in.GetLinks() {
				l.ShiftBufferedData()
			}
		}
	}

	return nil
}

func (n *Network) loadRegions(nr *netio.Reader) error {
	if err := nr.ExpectKey("Regions"); err != nil {
		return fmt.Errorf("network %q: load: %w", n.name, err)
	}
	count, err := nr.ReadBracketCount()
	if err != nil {
		return fmt.Errorf("network %q: load: %w", n.name, err)
	}

	for i := 0; i < count; i++ {
		if err := nr.ExpectOpenBrace(); err != nil {
			return fmt.Errorf("network %q: load: region %d: %w", n.name, i, err)
		}
		if err := nr.ExpectKey("name"); err != nil {
			return err
		}
		name, err := nr.ReadIdent()
		if err != nil {
			return err
		}
		if err := nr.ExpectKey("nodeType"); err != nil {
			return err
		}
		nodeType, err := nr.ReadIdent()
		if err != nil {
			return err
		}

		if err := nr.ExpectKey("phases"); err != nil {
			return err
		}
		phaseCount, err := nr.ReadBracketCount()
		if err != nil {
			return err
		}
		phases := make(map[uint32]struct{}, phaseCount)
		for j := 0; j < phaseCount; j++ {
			p, err := nr.ReadInt()
			if err != nil {
				return err
			}
			phases[uint32(p)] = struct{}{}
		}
		if err := nr.ExpectCloseBracket(); err != nil {
			return err
		}

		if err := nr.ExpectKey("bundle"); err != nil {
			return err
		}
		bundle, err := nr.ReadBytes()
		if err != nil {
			return err
		}

		r, err := region.NewFromSerialized(name, nodeType, bundle, n.registry, n.log)
		if err != nil {
			return fmt.Errorf("network %q: load: region %q: %w", n.name, name, err)
		}

		if err := nr.ExpectKey("outputs"); err != nil {
			return err
		}
		outCount, err := nr.ReadBracketCount()
		if err != nil {
			return err
		}
		outs := make(map[string]*array.Array, outCount)
		for j := 0; j < outCount; j++ {
			outName, err := nr.ReadIdent()
			if err != nil {
				return err
			}
			a, err := readArray(nr)
			if err != nil {
				return err
			}
			outs[outName] = a
		}
		if err := nr.ExpectCloseBracket(); err != nil {
			return err
		}
		r.RestoreOutputs(outs)

		if err := nr.ExpectCloseBrace(); err != nil {
			return err
		}

		n.regions[name] = r
		n.regionOrder = append(n.regionOrder, name)

		var maxPhase uint32
		for p := range phases {
			if p > maxPhase {
				maxPhase = p
			}
		}
		for len(n.phaseInfo) < int(maxPhase)+1 {
			n.phaseInfo = append(n.phaseInfo, map[string]struct{}{})
		}
		for p := range phases {
			n.phaseInfo[p][name] = struct{}{}
		}
		r.SetPhases(phases)
	}

	if err := nr.ExpectCloseBracket(); err != nil {
		return fmt.Errorf("network %q: load: %w", n.name, err)
	}
	n.resetEnabledPhases()
	return nil
}

func (n *Network) loadLinks(nr *netio.Reader) error {
	if err := nr.ExpectKey("Links"); err != nil {
		return fmt.Errorf("network %q: load: %w", n.name, err)
	}
	count, err := nr.ReadBracketCount()
	if err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		if err := nr.ExpectOpenBrace(); err != nil {
			return fmt.Errorf("network %q: load: link %d: %w", n.name, i, err)
		}
		if err := nr.ExpectKey("linkType"); err != nil {
			return err
		}
		linkType, err := nr.ReadIdent()
		if err != nil {
			return err
		}
		if err := nr.ExpectKey("linkParams"); err != nil {
			return err
		}
		paramsRaw, err := nr.ReadBytes()
		if err != nil {
			return err
		}
		if err := nr.ExpectKey("policy"); err != nil {
			return err
		}
		policyName, err := nr.ReadIdent()
		if err != nil {
			return err
		}
		policy, ok := linkPolicies[policyName]
		if !ok {
			return fmt.Errorf("network %q: load: unknown fan-in policy %q: %w", n.name, policyName, flowerr.ErrMalformedState)
		}

		if err := nr.ExpectKey("src"); err != nil {
			return err
		}
		srcRegion, err := nr.ReadIdent()
		if err != nil {
			return err
		}
		srcOutput, err := nr.ReadIdent()
		if err != nil {
			return err
		}
		if err := nr.ExpectKey("dst"); err != nil {
			return err
		}
		dstRegion, err := nr.ReadIdent()
		if err != nil {
			return err
		}
		dstInput, err := nr.ReadIdent()
		if err != nil {
			return err
		}
		if err := nr.ExpectKey("delay"); err != nil {
			return err
		}
		delay, err := nr.ReadInt()
		if err != nil {
			return err
		}

		if err := nr.ExpectKey("snapshots"); err != nil {
			return err
		}
		snapCount, err := nr.ReadBracketCount()
		if err != nil {
			return err
		}
		snaps := make([]*array.Array, snapCount)
		for j := 0; j < snapCount; j++ {
			a, err := readArray(nr)
			if err != nil {
				return err
			}
			snaps[j] = a
		}
		if err := nr.ExpectCloseBracket(); err != nil {
			return err
		}
		if err := nr.ExpectCloseBrace(); err != nil {
			return err
		}

		src, ok := n.regions[srcRegion]
		if !ok {
			return fmt.Errorf("network %q: load: %w", n.name, flowerr.ErrInvalidLinkRef)
		}
		dst, ok := n.regions[dstRegion]
		if !ok {
			return fmt.Errorf("network %q: load: %w", n.name, flowerr.ErrInvalidLinkRef)
		}
		srcPort, ok := src.Output(srcOutput)
		if !ok {
			return fmt.Errorf("network %q: load: %w", n.name, flowerr.ErrInvalidLinkRef)
		}
		dstPort, ok := dst.Input(dstInput)
		if !ok {
			return fmt.Errorf("network %q: load: %w", n.name, flowerr.ErrInvalidLinkRef)
		}

		l, err := ports.NewLink(linkType, string(paramsRaw), srcPort, int(delay), policy)
		if err != nil {
			return fmt.Errorf("network %q: load: %w", n.name, err)
		}
		if err := dstPort.AddLink(l); err != nil {
			return fmt.Errorf("network %q: load: %w", n.name, err)
		}
		l.RestoreQueuedSnapshots(snaps)
	}

	if err := nr.ExpectCloseBracket(); err != nil {
		return fmt.Errorf("network %q: load: %w", n.name, err)
	}
	return nil
}
