package network

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// DumpPhases renders the phase table and link inventory as text tables,
// for diagnostics only — this plays no part in the run loop's ordering
// guarantees.
func (n *Network) DumpPhases() string {
	phaseTable := table.NewWriter()
	phaseTable.SetTitle(fmt.Sprintf("%s: phases", n.name))
	phaseTable.AppendHeader(table.Row{"Phase", "Enabled", "Regions"})
	for p := range n.phaseInfo {
		enabled := p >= n.minEnabledPhase && p <= n.maxEnabledPhase
		regions := n.regionsInPhase(p)
		phaseTable.AppendRow(table.Row{p, enabled, regions})
	}

	linkTable := table.NewWriter()
	linkTable.SetTitle(fmt.Sprintf("%s: links", n.name))
	linkTable.AppendHeader(table.Row{"Src", "Dst", "Delay", "Policy"})
	for _, l := range n.allLinks() {
		dst := l.Dst()
		linkTable.AppendRow(table.Row{
			fmt.Sprintf("%s.%s", l.Src.RegionName, l.Src.Name),
			fmt.Sprintf("%s.%s", dst.RegionName, dst.Name),
			l.PropagationDelay,
			l.Policy.Name(),
		})
	}

	return phaseTable.Render() + "\n\n" + linkTable.Render()
}
