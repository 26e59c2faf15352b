package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/portsmith/internal/services"
	"github.com/localnerve/portsmith/internal/utils"
)

// DiscoveryResponse is the detailed form of a discover response
type DiscoveryResponse struct {
	Ports    []int                   `json:"ports"`
	Detailed map[int]services.Detail `json:"detailed"`
}

// Discover handles GET /discover?tag=...&detailed=1
// @Summary Discover reserved ports
// @Description List reserved ports carrying every given tag. Without tags all reserved ports are listed. With detailed=1 the tags and properties of each port are included.
// @Tags Discovery
// @Produce json
// @Param tag query []string false "Required tag, repeatable" collectionFormat(multi)
// @Param detailed query string false "Set to 1 for tags and properties"
// @Success 200 {array} int
// @Success 200 {object} DiscoveryResponse
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /discover [get]
func (h *ReservationHandler) Discover(c *fiber.Ctx) error {
	tags := parseTags(c)
	detailed := strings.HasPrefix(c.Query("detailed"), "1")

	result, err := h.Service.Discover(c.UserContext(), tags, detailed)
	if err != nil {
		return respondError(c, err, "discover")
	}

	if !detailed {
		return utils.SuccessResponse(c, result.Ports, fiber.StatusOK)
	}
	return utils.SuccessResponse(c, DiscoveryResponse{Ports: result.Ports, Detailed: result.Detailed}, fiber.StatusOK)
}
