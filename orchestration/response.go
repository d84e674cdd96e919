// Package orchestration runs the retrieval pipeline end to end:
// relevance scan, parallel query agents, selection merge, range
// resolution, budget packing and output assembly.
package orchestration

import (
	"time"

	"foray/model"
	"foray/output"
)

// ResponseType indicates how a retrieval run ended.
type ResponseType int

const (
	// ResponseSuccess means the pipeline ran through assembly.
	// Individual agents may still have failed; their partial results
	// are merged and their errors surface in the artifact.
	ResponseSuccess ResponseType = iota
	// ResponseFatal means the run aborted before assembly, including
	// recovery from a panic anywhere in the pipeline.
	ResponseFatal
)

// Response is the outcome of one retrieval run.
type Response struct {
	Type    ResponseType
	Output  output.Output       // zero value when Type is ResponseFatal
	Agents  []model.AgentResult // one per query, in query order
	Fatal   string              // diagnostic when Type is ResponseFatal
	Elapsed time.Duration
}

// Failed reports whether the run aborted before producing output.
func (r Response) Failed() bool { return r.Type == ResponseFatal }

// Usage sums token accounting across every agent, failed ones
// included.
func (r Response) Usage() model.UsageStats {
	var total model.UsageStats
	for _, res := range r.Agents {
		total.Add(res.State.Usage)
	}
	return total
}

func fatalResponse(msg string, elapsed time.Duration) Response {
	return Response{Type: ResponseFatal, Fatal: msg, Elapsed: elapsed}
}
