package cliattacks

import (
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/cstable"
	"github.com/sentinelhq/sentinel/pkg/types"
)

func attacksTable(out io.Writer, wantColor string, events []types.AttackEvent) {
	t := cstable.New(out, wantColor)
	t.SetHeaders("ID", "Date", "Source", "Port", "Service", "Type", "Severity", "Size")
	t.SetAlignment(text.AlignRight)

	for _, evt := range events {
		t.AddRow(
			strconv.FormatInt(evt.ID, 10),
			evt.Timestamp.Local().Format(time.DateTime),
			evt.SourceIP,
			strconv.Itoa(evt.TargetPort),
			evt.Service,
			evt.Type.String(),
			t.Level(evt.Severity.String()),
			strconv.Itoa(evt.PayloadSize),
		)
	}

	t.Render()
}
