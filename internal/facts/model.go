package facts

import (
	"iter"
	"strings"
)

// Provenance locates a detection in the source tree.
type Provenance struct {
	File    string `json:"file"`              // Source file (relative to repo root)
	Context string `json:"context,omitempty"` // Enclosing function, "" at top level
	Line    int    `json:"line,omitempty"`    // 1-based line of the matched expression
}

// UIElement is a widget-construction call on a UI-like receiver.
type UIElement struct {
	ElementType string  `json:"element_type"`           // e.g. "button", "checkbox"
	Label       *string `json:"label,omitempty"`        // First string literal argument
	ResponseVar *string `json:"response_var,omitempty"` // Variable the response was bound to, flows only
	Provenance
}

// DisplayLabel returns the label, or the element type when there is none.
func (u UIElement) DisplayLabel() string {
	if u.Label != nil {
		return *u.Label
	}
	return u.ElementType
}

// Action is an interaction query on a widget response.
type Action struct {
	ActionType string `json:"action_type"` // e.g. "clicked", "changed"
	Source     string `json:"source"`      // Rendered receiver expression
	Provenance
}

// StateMutation is a write to something that looks like application state.
type StateMutation struct {
	Target       string `json:"target"`        // e.g. "state.counter", "*value"
	MutationType string `json:"mutation_type"` // "assign", "add_assign", "method:push", ...
	Provenance
}

// Flow is a precise UI element → action → mutations chain found inside one if.
type Flow struct {
	UIElement      UIElement       `json:"ui_element"`
	Action         Action          `json:"action"`
	StateMutations []StateMutation `json:"state_mutations"`
	Context        string          `json:"context,omitempty"`
}

// MsgEmission is a design-system component emitting a message, e.g.
// Button::primary("+").on_click(ctx, Msg::Increment).
type MsgEmission struct {
	Component string  `json:"component"`
	Variant   string  `json:"variant"`
	Label     *string `json:"label,omitempty"`
	Action    string  `json:"action"`
	Msg       string  `json:"msg"`
	Provenance
}

// MsgHandler is one arm of an update function's match on the message.
type MsgHandler struct {
	MsgPattern     string          `json:"msg_pattern"`
	StateMutations []StateMutation `json:"state_mutations"`
	Provenance
}

// TeaFlow pairs an emission with the handler that consumes its message.
type TeaFlow struct {
	Emission MsgEmission `json:"emission"`
	Handler  *MsgHandler `json:"handler,omitempty"`
}

// FileAnalysis holds everything detected in one source file.
type FileAnalysis struct {
	Path           string          `json:"path"`
	UIElements     []UIElement     `json:"ui_elements"`
	Actions        []Action        `json:"actions"`
	StateMutations []StateMutation `json:"state_mutations"`
	Flows          []Flow          `json:"flows"`
	MsgEmissions   []MsgEmission   `json:"msg_emissions,omitempty"`
	MsgHandlers    []MsgHandler    `json:"msg_handlers,omitempty"`
	TeaFlows       []TeaFlow       `json:"tea_flows,omitempty"`
}

// NewFileAnalysis returns an empty analysis for path.
func NewFileAnalysis(path string) *FileAnalysis {
	return &FileAnalysis{
		Path:           path,
		UIElements:     []UIElement{},
		Actions:        []Action{},
		StateMutations: []StateMutation{},
		Flows:          []Flow{},
	}
}

// FactCount is the number of detections of every kind in the file.
func (fa *FileAnalysis) FactCount() int {
	return len(fa.UIElements) + len(fa.Actions) + len(fa.StateMutations) +
		len(fa.Flows) + len(fa.MsgEmissions) + len(fa.MsgHandlers)
}

// AnalysisResult aggregates file analyses in insertion order.
type AnalysisResult struct {
	Files []FileAnalysis `json:"files"`
}

func (r *AnalysisResult) AddFile(fa FileAnalysis) {
	r.Files = append(r.Files, fa)
}

// AllUIElements yields the UI elements of every file in order.
func (r *AnalysisResult) AllUIElements() iter.Seq[UIElement] {
	return func(yield func(UIElement) bool) {
		for _, f := range r.Files {
			for _, u := range f.UIElements {
				if !yield(u) {
					return
				}
			}
		}
	}
}

// AllActions yields the actions of every file in order.
func (r *AnalysisResult) AllActions() iter.Seq[Action] {
	return func(yield func(Action) bool) {
		for _, f := range r.Files {
			for _, a := range f.Actions {
				if !yield(a) {
					return
				}
			}
		}
	}
}

// AllStateMutations yields the state mutations of every file in order.
func (r *AnalysisResult) AllStateMutations() iter.Seq[StateMutation] {
	return func(yield func(StateMutation) bool) {
		for _, f := range r.Files {
			for _, m := range f.StateMutations {
				if !yield(m) {
					return
				}
			}
		}
	}
}

// StateGroup is the first two dot-separated components of a mutation target,
// e.g. "state.user" for "state.user.profile.name".
func StateGroup(target string) string {
	parts := strings.SplitN(target, ".", 3)
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, ".")
}

// Insight represents a finding produced by an explainer.
type Insight struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Confidence  float64    `json:"confidence"` // 0.0 - 1.0
	Evidence    []Evidence `json:"evidence"`
	Actions     []string   `json:"suggested_actions,omitempty"`
}

// Evidence links an insight back to concrete files and detections.
type Evidence struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Context string `json:"context,omitempty"`
	Fact    string `json:"fact,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Artifact represents a generated output file.
type Artifact struct {
	Name    string `json:"name"` // e.g. "summary.mmd", "flows/src/app.rs.mmd"
	Content []byte `json:"-"`
	Type    string `json:"type"` // MIME type hint
}

// Snapshot holds the complete result of an analysis run.
type Snapshot struct {
	Meta      SnapshotMeta    `json:"meta"`
	Result    *AnalysisResult `json:"-"`
	Insights  []Insight       `json:"insights"`
	Artifacts []Artifact      `json:"artifacts"`
}

// SnapshotMeta contains metadata about a snapshot generation run.
type SnapshotMeta struct {
	ID           string     `json:"id"`
	RepoPath     string     `json:"repo_path"`
	GeneratedAt  string     `json:"generated_at"`
	Duration     string     `json:"duration"`
	Extractors   []string   `json:"extractors"`
	Explainers   []string   `json:"explainers"`
	Renderers    []string   `json:"renderers"`
	FileHashes   []FileHash `json:"file_hashes,omitempty"`
	FileCount    int        `json:"file_count"`
	Reused       int        `json:"reused"`
	Skipped      []string   `json:"skipped,omitempty"` // Files rejected by the parser
	FactCount    int        `json:"fact_count"`
	InsightCount int        `json:"insight_count"`
}

// FileHash tracks a file's content hash for incremental updates.
type FileHash struct {
	Path    string `json:"path"`
	Hash    string `json:"hash"`
	ModTime string `json:"mod_time"`
}
