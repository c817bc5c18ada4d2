package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dejo1307/flowmcp/internal/facts"
)

// WriteFileSummary writes a plain-text listing of one file's flows and raw
// detection counts.
func WriteFileSummary(w io.Writer, fa *facts.FileAnalysis) error {
	bw := bufio.NewWriter(w)

	fmt.Fprint(bw, "=== TEA Flows ===\n\n")
	if len(fa.TeaFlows) == 0 {
		fmt.Fprint(bw, "No TEA flows detected.\n")
	}
	for i, tf := range fa.TeaFlows {
		em := tf.Emission
		label := "-"
		if em.Label != nil {
			label = *em.Label
		}
		fmt.Fprintf(bw, "Flow %d: %s::%s(%q) -> %s -> %s\n", i+1, em.Component, em.Variant, label, em.Action, em.Msg)
		if tf.Handler == nil {
			fmt.Fprint(bw, "  (no handler found)\n\n")
			continue
		}
		fmt.Fprintf(bw, "  -> %d state mutation(s)\n", len(tf.Handler.StateMutations))
		for _, m := range tf.Handler.StateMutations {
			fmt.Fprintf(bw, "     %s [%s]\n", m.Target, m.MutationType)
		}
		fmt.Fprint(bw, "\n")
	}

	fmt.Fprint(bw, "\n=== Standard UI Flows ===\n\n")
	if len(fa.Flows) == 0 {
		fmt.Fprint(bw, "No standard egui flows detected.\n")
	}
	for i, flow := range fa.Flows {
		fmt.Fprintf(bw, "Flow %d: %s %q -> .%s()\n", i+1, flow.UIElement.ElementType, flow.UIElement.DisplayLabel(), flow.Action.ActionType)
		for _, m := range flow.StateMutations {
			fmt.Fprintf(bw, "  -> %s [%s]\n", m.Target, m.MutationType)
		}
	}

	fmt.Fprint(bw, "\n=== Raw Detections ===\n\n")
	fmt.Fprintf(bw, "Msg Emissions: %d\n", len(fa.MsgEmissions))
	for _, em := range fa.MsgEmissions {
		label := "None"
		if em.Label != nil {
			label = fmt.Sprintf("Some(%q)", *em.Label)
		}
		fmt.Fprintf(bw, "  %s::%s(%s) -> %s -> %s\n", em.Component, em.Variant, label, em.Action, em.Msg)
	}
	fmt.Fprintf(bw, "\nMsg Handlers: %d\n", len(fa.MsgHandlers))
	for _, h := range fa.MsgHandlers {
		fmt.Fprintf(bw, "  %s -> %d mutation(s)\n", h.MsgPattern, len(h.StateMutations))
	}
	fmt.Fprintf(bw, "\nUI Elements: %d\n", len(fa.UIElements))
	fmt.Fprintf(bw, "Actions: %d\n", len(fa.Actions))
	fmt.Fprintf(bw, "State Mutations: %d\n", len(fa.StateMutations))

	return bw.Flush()
}
