package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nwgraph/analyticscore/internal/forcelayout"
)

type layoutInteraction struct {
	Type    string  `json:"type"` // "pin", "move", "unpin", "add_nodes", "center_graph"
	NodeID  int64   `json:"node_id,omitempty"`
	NodeIDs []int64 `json:"node_ids,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Radius  float64 `json:"radius,omitempty"`
}

type layoutStepRequest struct {
	BuildID     string             `json:"build_id,omitempty"`
	Seed        int64              `json:"seed,omitempty"`
	Spread      float64            `json:"spread,omitempty"`
	Interaction *layoutInteraction `json:"interaction,omitempty"`
}

type layoutStepResponse struct {
	Nodes  []forcelayout.NodeState `json:"nodes"`
	Stable bool                    `json:"stable"`
}

// handleLayoutStep lazily creates a per-session Layout on first call (which
// must supply build_id), applies any queued interaction, advances the
// simulation by one frame, and returns the resulting node positions. A
// session is a single logical actor: callers are expected to serialize
// their own requests for one sessionID, matching ForceDirectedLayout's
// single-writer contract.
func (s *Server) handleLayoutStep(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req layoutStepRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
	}

	layout, err := s.layoutFor(sessionID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.Interaction != nil {
		applyInteraction(layout, *req.Interaction)
	}
	layout.Step()

	writeJSON(w, http.StatusOK, layoutStepResponse{
		Nodes:  layout.State(),
		Stable: layout.IsStable(),
	})
}

func (s *Server) layoutFor(sessionID string, req layoutStepRequest) (*forcelayout.Layout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if layout, ok := s.layouts[sessionID]; ok {
		return layout, nil
	}

	if req.BuildID == "" {
		return nil, fmt.Errorf("session %q does not exist yet: build_id is required to start it", sessionID)
	}
	build, ok := s.builds[req.BuildID]
	if !ok {
		return nil, fmt.Errorf("unknown build %q", req.BuildID)
	}

	spread := req.Spread
	if spread <= 0 {
		spread = 500
	}
	layout := forcelayout.New(build.result.Index, forcelayout.DefaultConfig(), req.Seed, spread)
	s.layouts[sessionID] = layout
	return layout, nil
}

func applyInteraction(layout *forcelayout.Layout, in layoutInteraction) {
	pos := forcelayout.Vec2{X: in.X, Y: in.Y}
	switch in.Type {
	case "pin":
		layout.Pin(in.NodeID, pos)
	case "move":
		layout.Move(in.NodeID, pos)
	case "unpin":
		layout.Unpin(in.NodeID)
	case "add_nodes":
		layout.AddNodes(in.NodeIDs, pos, in.Radius)
	case "center_graph":
		layout.CenterGraph(pos)
	}
}
