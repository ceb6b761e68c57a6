package store

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/wbrown/datomstore/codec"
	"github.com/wbrown/datomstore/index"
	"github.com/wbrown/datomstore/kv"
)

// Stat renders a diagnostic report of the store's index sizes and
// schema state: a markdown table of per-index entry counts plus the
// counters and last-modified stamp. A debugging aid, not part of the
// read/write contract.
func (s *Store) Stat() (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	eav, err := s.DatomCount(index.EAV)
	if err != nil {
		return "", err
	}
	ave, err := s.DatomCount(index.AVE)
	if err != nil {
		return "", err
	}
	vea, err := s.DatomCount(index.VEA)
	if err != nil {
		return "", err
	}
	giants, err := s.kv.RangeCount(kv.NSGiants, kv.All())
	if err != nil {
		return "", err
	}

	var out strings.Builder
	out.WriteString(color.GreenString("=== datomstore ==="))
	out.WriteString("\n")
	fmt.Fprintf(&out, "%s %s\n", color.BlueString("dir:"), s.Dir())
	fmt.Fprintf(&out, "%s %d (%s)\n", color.BlueString("max-aid:"), s.MaxAid(), codec.EncodeUint64(uint64(s.MaxAid())))
	fmt.Fprintf(&out, "%s %d (%s)\n", color.BlueString("max-gt:"), s.MaxGt(), codec.EncodeUint64(s.MaxGt()))

	lastModified, err := s.LastModified()
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&out, "%s %s\n\n", color.BlueString("last-modified:"), lastModified)

	table := tablewriter.NewTable(&out, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header([]string{"index", "entries"})
	table.Append([]string{"eav", fmt.Sprint(eav)})
	table.Append([]string{"ave", fmt.Sprint(ave)})
	table.Append([]string{"vea", fmt.Sprint(vea)})
	table.Append([]string{"giants", fmt.Sprint(giants)})
	table.Append([]string{color.YellowString("attributes"), fmt.Sprint(len(s.Schema()))})
	table.Render()

	return out.String(), nil
}
