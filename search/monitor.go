package search

import (
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/normalize"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterNormalize(terms normalize.QueryTerms)
	AfterLexicalMatch(candidates []core.Candidate)
	AfterFuzzyMatch(candidates []core.Candidate)
	AfterVectorMatch(candidates []core.Candidate)
	VectorSkipped(reason string)
	AfterFusion(count int)
	DroppedCorruptEntry(id core.ID)
	Finish(results []*core.RankedResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                         {}
func (n *noopMonitor) AfterNormalize(_ normalize.QueryTerms)  {}
func (n *noopMonitor) AfterLexicalMatch(_ []core.Candidate)   {}
func (n *noopMonitor) AfterFuzzyMatch(_ []core.Candidate)     {}
func (n *noopMonitor) AfterVectorMatch(_ []core.Candidate)    {}
func (n *noopMonitor) VectorSkipped(_ string)                 {}
func (n *noopMonitor) AfterFusion(_ int)                      {}
func (n *noopMonitor) DroppedCorruptEntry(_ core.ID)          {}
func (n *noopMonitor) Finish(_ []*core.RankedResult)          {}
