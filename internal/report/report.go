// Package report renders an unlock.Snapshot for --status.
package report

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	jsonParser "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/junevm/flashunlock/internal/unlock"
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Table writes s as a register table to w. rcbaBase and rcbaLen describe the
// mapped RCBA window the HSFS value came from.
func Table(w io.Writer, s unlock.Snapshot, rcbaBase int64, rcbaLen int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Flash unlock status")
	t.AppendHeader(table.Row{"Register", "Location", "Value", "Meaning"})
	t.AppendRow(table.Row{
		"HSFS",
		fmt.Sprintf("RCBA 0x%x+0x%x (%s window)", rcbaBase, unlock.HSFSOffset, humanize.IBytes(uint64(rcbaLen))),
		fmt.Sprintf("0x%04x", s.HSFS),
		"descriptor override: " + yesNo(s.FDOOverridden),
	})
	t.AppendRow(table.Row{
		"BIOS_CNTL",
		"LPC 0xdc",
		fmt.Sprintf("0x%02x", s.BIOSControl),
		"write protected: " + yesNo(s.WriteProtected),
	})
	t.AppendRow(table.Row{
		"SMI_EN",
		fmt.Sprintf("I/O 0x%04x", s.PMBase+0x30),
		fmt.Sprintf("0x%08x", s.SMIEnable),
		"SMIs enabled: " + yesNo(s.SMIEnabled),
	})
	t.AppendSeparator()
	for _, r := range s.DecodeRanges {
		t.AppendRow(table.Row{"LPC decode", "", "", r})
	}
	t.AppendFooter(table.Row{"EC", fmt.Sprintf("I/O 0x%04x", s.ECIndexPort), "", "decoded: " + yesNo(s.ECDecoded)})
	t.Render()
}

// JSON writes s to w as a JSON object.
func JSON(w io.Writer, s unlock.Snapshot) error {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(s, "json"), nil); err != nil {
		return fmt.Errorf("error loading snapshot: %w", err)
	}
	b, err := k.Marshal(jsonParser.Parser())
	if err != nil {
		return fmt.Errorf("error marshalling snapshot: %w", err)
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return err
	}
	return nil
}
