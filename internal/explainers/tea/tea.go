package tea

import (
	"context"
	"fmt"

	"github.com/dejo1307/flowmcp/internal/extractors/teaextractor"
	"github.com/dejo1307/flowmcp/internal/facts"
)

// TeaExplainer reports messages that are emitted but never handled, and
// update arms for messages nothing emits. Matching spans the whole store, so
// a view and its update function may live in different files.
type TeaExplainer struct{}

// New creates a new TeaExplainer.
func New() *TeaExplainer {
	return &TeaExplainer{}
}

func (e *TeaExplainer) Name() string {
	return "tea"
}

func (e *TeaExplainer) Explain(ctx context.Context, store *facts.Store) ([]facts.Insight, error) {
	files := store.All()

	var emissions []facts.MsgEmission
	var handlers []facts.MsgHandler
	for _, fa := range files {
		emissions = append(emissions, fa.MsgEmissions...)
		handlers = append(handlers, fa.MsgHandlers...)
	}

	var insights []facts.Insight
	for _, em := range emissions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if handled(em.Msg, handlers) {
			continue
		}
		insights = append(insights, facts.Insight{
			Title: fmt.Sprintf("Unhandled message: %s", em.Msg),
			Description: fmt.Sprintf("%s::%s emits %s on %s, but no update arm matches it. The interaction has no effect on the model.",
				em.Component, em.Variant, em.Msg, em.Action),
			Confidence: 1.0,
			Evidence: []facts.Evidence{{
				File:    em.File,
				Line:    em.Line,
				Context: em.Context,
				Fact:    em.Msg,
				Detail:  fmt.Sprintf("%s::%s.%s", em.Component, em.Variant, em.Action),
			}},
			Actions: []string{
				fmt.Sprintf("Add a %s arm to the update match", em.Msg),
				"Check the message name for typos",
			},
		})
	}

	for _, h := range handlers {
		if emitted(h.MsgPattern, emissions) {
			continue
		}
		insights = append(insights, facts.Insight{
			Title:       fmt.Sprintf("Message never emitted: %s", h.MsgPattern),
			Description: fmt.Sprintf("update handles %s, but no component emits it. It may be sent from a command or subscription instead.", h.MsgPattern),
			Confidence:  0.6,
			Evidence: []facts.Evidence{{
				File:    h.File,
				Line:    h.Line,
				Context: h.Context,
				Fact:    h.MsgPattern,
				Detail:  fmt.Sprintf("%d state mutation(s)", len(h.StateMutations)),
			}},
			Actions: []string{"Remove the arm if the message is dead"},
		})
	}

	return insights, nil
}

func handled(msg string, handlers []facts.MsgHandler) bool {
	for _, h := range handlers {
		if teaextractor.MsgMatches(msg, h.MsgPattern) {
			return true
		}
	}
	return false
}

func emitted(pattern string, emissions []facts.MsgEmission) bool {
	for _, em := range emissions {
		if teaextractor.MsgMatches(em.Msg, pattern) {
			return true
		}
	}
	return false
}
