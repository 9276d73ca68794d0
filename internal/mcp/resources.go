package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/reposcout/internal/async"
	"github.com/Aman-CERP/reposcout/internal/tools"
)

// StatsURI identifies the statistics resource.
const StatsURI = "reposcout://stats"

// StatsOutput is the JSON body of the stats resource.
type StatsOutput struct {
	tools.Report
	Prewarm *async.ProgressSnapshot `json:"prewarm,omitempty"`
}

func (s *Server) registerStatsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "stats",
			URI:         StatsURI,
			Description: "Cache, documentation index and tool usage statistics",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.readStats(ctx)
		},
	)
}

// Stats gathers the stats resource body.
func (s *Server) Stats() StatsOutput {
	out := StatsOutput{Report: s.tools.Stats()}

	s.mu.RLock()
	progress := s.prewarm
	s.mu.RUnlock()
	if progress != nil {
		snap := progress.Snapshot()
		out.Prewarm = &snap
	}
	return out
}

func (s *Server) readStats(_ context.Context) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(s.Stats(), "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      StatsURI,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
