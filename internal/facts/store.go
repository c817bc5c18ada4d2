package facts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Record kinds returned by Query.
const (
	KindUI       = "ui"
	KindAction   = "action"
	KindState    = "state"
	KindFlow     = "flow"
	KindEmission = "emission"
	KindHandler  = "handler"
)

// Store provides in-memory storage and querying of file analyses with JSONL
// persistence.
type Store struct {
	mu     sync.RWMutex
	files  []FileAnalysis
	byPath map[string]int // path -> index into files
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{byPath: make(map[string]int)}
}

// Put adds an analysis, replacing any previous analysis of the same path.
func (s *Store) Put(fa FileAnalysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.byPath[fa.Path]; ok {
		s.files[idx] = fa
		return
	}
	s.byPath[fa.Path] = len(s.files)
	s.files = append(s.files, fa)
}

// Get returns the analysis of a single file.
func (s *Store) Get(path string) (FileAnalysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byPath[path]
	if !ok {
		return FileAnalysis{}, false
	}
	return s.files[idx], true
}

// All returns every analysis in insertion order.
func (s *Store) All() []FileAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]FileAnalysis, len(s.files))
	copy(result, s.files)
	return result
}

// Count returns the number of files in the store.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// FactCount returns the number of detections across all files.
func (s *Store) FactCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := range s.files {
		n += s.files[i].FactCount()
	}
	return n
}

// Result returns the store contents as an AnalysisResult.
func (s *Store) Result() *AnalysisResult {
	return &AnalysisResult{Files: s.All()}
}

// Clear removes all analyses from the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = nil
	s.byPath = make(map[string]int)
}

// Record is a single detection flattened for querying.
type Record struct {
	Kind    string `json:"kind"`
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Context string `json:"context,omitempty"`
	Name    string `json:"name"`
	Detail  string `json:"detail,omitempty"`
}

// QueryOpts holds the query filters. Empty values match everything.
type QueryOpts struct {
	Kind       string // exact record kind
	File       string // exact file
	FilePrefix string // file path prefix (e.g. "src/ui")
	Context    string // exact enclosing function
	Name       string // substring of the record name
	Offset     int    // number of results to skip
	Limit      int    // max results to return (0 = default 100, max 500)
}

// Query returns records matching opts along with the total count of matches
// before offset/limit are applied.
func (s *Store) Query(opts QueryOpts) ([]Record, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Record
	for i := range s.files {
		fa := &s.files[i]
		if opts.File != "" && fa.Path != opts.File {
			continue
		}
		if opts.FilePrefix != "" && !strings.HasPrefix(fa.Path, opts.FilePrefix) {
			continue
		}
		for _, r := range records(fa) {
			if opts.Kind != "" && r.Kind != opts.Kind {
				continue
			}
			if opts.Context != "" && r.Context != opts.Context {
				continue
			}
			if opts.Name != "" && !strings.Contains(r.Name, opts.Name) {
				continue
			}
			matched = append(matched, r)
		}
	}

	total := len(matched)

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, total
		}
		matched = matched[opts.Offset:]
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, total
}

func records(fa *FileAnalysis) []Record {
	var out []Record
	for _, u := range fa.UIElements {
		r := Record{Kind: KindUI, File: u.File, Line: u.Line, Context: u.Context, Name: u.ElementType}
		if u.Label != nil {
			r.Detail = *u.Label
		}
		out = append(out, r)
	}
	for _, a := range fa.Actions {
		out = append(out, Record{Kind: KindAction, File: a.File, Line: a.Line, Context: a.Context, Name: a.ActionType, Detail: a.Source})
	}
	for _, m := range fa.StateMutations {
		out = append(out, Record{Kind: KindState, File: m.File, Line: m.Line, Context: m.Context, Name: m.Target, Detail: m.MutationType})
	}
	for _, f := range fa.Flows {
		out = append(out, Record{
			Kind:    KindFlow,
			File:    fa.Path,
			Line:    f.Action.Line,
			Context: f.Context,
			Name:    f.UIElement.DisplayLabel() + " -> " + f.Action.ActionType,
			Detail:  joinTargets(f.StateMutations),
		})
	}
	for _, e := range fa.MsgEmissions {
		out = append(out, Record{
			Kind:    KindEmission,
			File:    e.File,
			Line:    e.Line,
			Context: e.Context,
			Name:    e.Msg,
			Detail:  e.Component + "::" + e.Variant + "." + e.Action,
		})
	}
	for _, h := range fa.MsgHandlers {
		out = append(out, Record{Kind: KindHandler, File: h.File, Line: h.Line, Context: h.Context, Name: h.MsgPattern, Detail: joinTargets(h.StateMutations)})
	}
	return out
}

func joinTargets(muts []StateMutation) string {
	parts := make([]string, len(muts))
	for i, m := range muts {
		parts[i] = m.Target
	}
	return strings.Join(parts, ", ")
}

// Chain is one UI → action → mutation path that writes a state target.
type Chain struct {
	File     string        `json:"file"`
	Via      string        `json:"via"` // "flow" or "tea"
	Trigger  string        `json:"trigger"`
	Action   string        `json:"action"`
	Mutation StateMutation `json:"mutation"`
}

// WritersOf returns every flow and TEA flow that mutates target or one of its
// sub-paths (target "state.items" matches "state.items.len" but not
// "state.items_count").
func (s *Store) WritersOf(target string) []Chain {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Chain
	for i := range s.files {
		fa := &s.files[i]
		for _, f := range fa.Flows {
			for _, m := range f.StateMutations {
				if !TargetMatches(m.Target, target) {
					continue
				}
				out = append(out, Chain{
					File:     fa.Path,
					Via:      "flow",
					Trigger:  f.UIElement.ElementType + " " + quoteLabel(f.UIElement.DisplayLabel()),
					Action:   f.Action.ActionType,
					Mutation: m,
				})
			}
		}
		for _, tf := range fa.TeaFlows {
			if tf.Handler == nil {
				continue
			}
			for _, m := range tf.Handler.StateMutations {
				if !TargetMatches(m.Target, target) {
					continue
				}
				trigger := tf.Emission.Component + "::" + tf.Emission.Variant
				if tf.Emission.Label != nil {
					trigger += " " + quoteLabel(*tf.Emission.Label)
				}
				out = append(out, Chain{
					File:     fa.Path,
					Via:      "tea",
					Trigger:  trigger,
					Action:   tf.Emission.Action + " → " + tf.Emission.Msg,
					Mutation: m,
				})
			}
		}
	}
	return out
}

// TargetMatches reports whether got is want or a dotted or indexed sub-path of it.
func TargetMatches(got, want string) bool {
	if got == want {
		return true
	}
	if !strings.HasPrefix(got, want) {
		return false
	}
	next := got[len(want)]
	return next == '.' || next == '['
}

func quoteLabel(s string) string {
	return `"` + s + `"`
}

// WriteJSONL writes one FileAnalysis per line.
func (s *Store) WriteJSONL(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enc := json.NewEncoder(w)
	for i := range s.files {
		if err := enc.Encode(&s.files[i]); err != nil {
			return fmt.Errorf("encoding analysis %q: %w", s.files[i].Path, err)
		}
	}
	return nil
}

// WriteJSONLFile writes all analyses as JSONL to the given file path.
// Flush and close errors are reported, so a short write never passes silently.
func (s *Store) WriteJSONLFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	bw := bufio.NewWriter(f)
	if err := s.WriteJSONL(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return nil
}

// ReadJSONL reads analyses from a JSONL reader and adds them to the store.
func (s *Store) ReadJSONL(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	// Allow large lines
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var fa FileAnalysis
		if err := json.Unmarshal(line, &fa); err != nil {
			return fmt.Errorf("decoding analysis: %w", err)
		}
		s.Put(fa)
	}
	return scanner.Err()
}

// ReadJSONLFile reads analyses from a JSONL file and adds them to the store.
func (s *Store) ReadJSONLFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return s.ReadJSONL(f)
}
