package bridge

import (
	"sort"

	"github.com/russellhaering/lspbridge/pkg/convert"
	"github.com/russellhaering/lspbridge/pkg/editor"
	"github.com/russellhaering/lspbridge/pkg/protocol"
)

// ApplyTextEdits applies edits to e in one transaction. Edits are applied from
// the last start position to the first, so every range is still expressed in
// the original document's coordinates when it is applied. Inserts sharing a
// start position end up in the order the server sent them.
func ApplyTextEdits(e editor.TextEditor, edits []protocol.TextEdit) {
	if len(edits) == 0 {
		return
	}

	ordered := append([]protocol.TextEdit(nil), edits...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Range.Start.Less(ordered[j].Range.Start)
	})

	e.Transact(func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			e.SetTextInRange(convert.RangeToEditorRange(ordered[i].Range), ordered[i].NewText)
		}
	})
}
