package router

import (
	"sort"
	"strings"
)

// AnalyzedProcedure is one procedure with its flattened name.
type AnalyzedProcedure struct {
	Name      string
	Procedure *Procedure
	IsQuery   bool
}

// Classifier overrides classification. It returns KindQuery or KindMutation,
// or "" to fall back to the procedure's meta.
type Classifier func(name string, p *Procedure) string

type AnalyzeOption func(*analyzeOptions)

type analyzeOptions struct {
	classifier Classifier
}

func WithClassifier(fn Classifier) AnalyzeOption {
	return func(o *analyzeOptions) { o.classifier = fn }
}

// Analyze flattens r into its procedures. Nested names are joined with "_"
// and siblings are visited in key order. Values that are neither procedures
// nor routers are skipped.
func Analyze(r Router, opts ...AnalyzeOption) []AnalyzedProcedure {
	var o analyzeOptions
	for _, opt := range opts {
		opt(&o)
	}
	out := []AnalyzedProcedure{}
	analyze(r, "", &o, &out)
	return out
}

func sortedKeys(r Router) []string {
	keys := make([]string, 0, len(r.Procedures))
	for k := range r.Procedures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func analyze(r Router, prefix string, o *analyzeOptions, out *[]AnalyzedProcedure) {
	for _, key := range sortedKeys(r) {
		name := key
		if prefix != "" {
			name = prefix + "_" + key
		}
		v := r.Procedures[key]
		if sub, ok := asRouter(v); ok {
			analyze(sub, name, o, out)
			continue
		}
		p, ok := asProcedure(v)
		if !ok {
			continue
		}
		*out = append(*out, AnalyzedProcedure{Name: name, Procedure: p, IsQuery: o.classify(name, p)})
	}
}

func (o *analyzeOptions) classify(name string, p *Procedure) bool {
	if o.classifier != nil {
		switch o.classifier(name, p) {
		case KindQuery:
			return true
		case KindMutation:
			return false
		}
	}
	return isQuery(p)
}

// Lookup resolves a flattened name back to its procedure. When several
// entries flatten to name, the one Analyze lists first wins.
func Lookup(r Router, name string) (*Procedure, bool) {
	for _, key := range sortedKeys(r) {
		v := r.Procedures[key]
		if key == name {
			if p, ok := asProcedure(v); ok {
				return p, true
			}
		}
		if rest, ok := strings.CutPrefix(name, key+"_"); ok {
			if sub, ok := asRouter(v); ok {
				if p, ok := Lookup(sub, rest); ok {
					return p, true
				}
			}
		}
	}
	return nil, false
}
