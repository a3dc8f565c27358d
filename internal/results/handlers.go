package results

import (
	"strconv"

	"coopvote-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// Tally GET /results/tally?position_id=&branch_number= — per-candidate
// totals with the online/offline split, ranked within each position.
func (h *Handlers) Tally(c *fiber.Ctx) error {
	var f Filter
	if raw := c.Query("position_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return response.Error(c, "position_id must be a number", fiber.StatusBadRequest,
				fiber.Map{"field": "position_id"})
		}
		positionID := uint(id)
		f.PositionID = &positionID
	}
	if raw := c.Query("branch_number"); raw != "" {
		branch := raw
		f.BranchNumber = &branch
	}

	tallies, err := h.Service.Tally(c.Context(), f)
	if err != nil {
		return response.Error(c, "Could not compute tally", fiber.StatusServiceUnavailable, nil)
	}
	return response.Success(c, "Tally computed", fiber.Map{"positions": tallies}, nil)
}
