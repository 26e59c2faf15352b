package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/portsmith/internal/services"
	"github.com/localnerve/portsmith/internal/types"
	"github.com/localnerve/portsmith/internal/utils"
)

// ReservationHandler handles the reservation routes
type ReservationHandler struct {
	Service *services.ReservationService
}

// GetReservation handles GET /reserved/:port
// @Summary Get a reservation
// @Description Get the tags and properties of a reserved port. A free port answers 404 with an empty object.
// @Tags Reservations
// @Produce json
// @Param port path int true "Port number"
// @Success 200 {object} store.Reservation
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} object
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /reserved/{port} [get]
func (h *ReservationHandler) GetReservation(c *fiber.Ctx) error {
	port, err := parsePort(c)
	if err != nil {
		return respondError(c, err, "getReservation")
	}

	reservation, err := h.Service.Get(c.UserContext(), port)
	if errors.Is(err, types.ErrNotReserved) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{})
	}
	if err != nil {
		return respondError(c, err, "getReservation")
	}

	return utils.SuccessResponse(c, reservation, fiber.StatusOK)
}

// Reserve handles POST /reserved/:port
// @Summary Reserve a port
// @Description Reserve a free port with optional tags and properties. A missing or unreadable body reserves the port bare.
// @Tags Reservations
// @Accept json
// @Produce json
// @Param port path int true "Port number"
// @Param body body object false "Tags and properties"
// @Success 201 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /reserved/{port} [post]
func (h *ReservationHandler) Reserve(c *fiber.Ctx) error {
	port, err := parsePort(c)
	if err != nil {
		return respondError(c, err, "reserve")
	}

	body := decodeOptionalBody(c)
	if err := h.Service.Reserve(c.UserContext(), port, body.data()); err != nil {
		return respondError(c, err, "reserve")
	}

	return utils.MutationSuccessResponse(c, fiber.StatusCreated, "Port reserved", port)
}

// Modify handles PUT /reserved/:port
// @Summary Replace a reservation
// @Description Replace all tags and properties of a reserved port in one step
// @Tags Reservations
// @Accept json
// @Produce json
// @Param port path int true "Port number"
// @Param body body object true "Tags and properties"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /reserved/{port} [put]
func (h *ReservationHandler) Modify(c *fiber.Ctx) error {
	port, err := parsePort(c)
	if err != nil {
		return respondError(c, err, "modify")
	}

	var body reservationBody
	if err := decodeBody(c, &body); err != nil {
		return respondError(c, err, "modify")
	}

	if err := h.Service.Modify(c.UserContext(), port, body.data()); err != nil {
		return respondError(c, err, "modify")
	}

	return utils.MutationSuccessResponse(c, fiber.StatusOK, "Port reservation changed", port)
}

// Patch handles PATCH /reserved/:port
// @Summary Patch a reservation
// @Description Set or delete (null) properties and add or remove tags of a reserved port
// @Tags Reservations
// @Accept json
// @Produce json
// @Param port path int true "Port number"
// @Param body body object true "Property and tag changes"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /reserved/{port} [patch]
func (h *ReservationHandler) Patch(c *fiber.Ctx) error {
	port, err := parsePort(c)
	if err != nil {
		return respondError(c, err, "patch")
	}

	var body patchBody
	if err := decodeBody(c, &body); err != nil {
		return respondError(c, err, "patch")
	}

	if err := h.Service.Patch(c.UserContext(), port, body.patch()); err != nil {
		return respondError(c, err, "patch")
	}

	return utils.MutationSuccessResponse(c, fiber.StatusOK, "Port reservation changed", port)
}

// Release handles DELETE /reserved/:port
// @Summary Release a port
// @Description Release a reserved port with its tags and properties
// @Tags Reservations
// @Produce json
// @Param port path int true "Port number"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /reserved/{port} [delete]
func (h *ReservationHandler) Release(c *fiber.Ctx) error {
	port, err := parsePort(c)
	if err != nil {
		return respondError(c, err, "release")
	}

	if err := h.Service.Release(c.UserContext(), port); err != nil {
		return respondError(c, err, "release")
	}

	return utils.MutationSuccessResponse(c, fiber.StatusOK, "Port reservation cleared", port)
}

// GetUnreserved handles GET /get_unreserved
// @Summary Peek at the next free port
// @Description Report the lowest free port at or above the floor without reserving it
// @Tags Allocation
// @Produce json
// @Success 200 {object} utils.PortResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Failure 503 {object} utils.ErrorResponseStruct
// @Router /get_unreserved [get]
func (h *ReservationHandler) GetUnreserved(c *fiber.Ctx) error {
	port, err := h.Service.NextUnreserved(c.UserContext())
	if err != nil {
		return respondError(c, err, "getUnreserved")
	}

	return utils.SuccessResponse(c, utils.PortResponseStruct{Port: port}, fiber.StatusOK)
}

// ReserveNext handles POST /reserve_next
// @Summary Reserve the next free port
// @Description Reserve the lowest free port at or above the floor and return it
// @Tags Allocation
// @Accept json
// @Produce json
// @Param body body object false "Tags and properties"
// @Success 201 {object} utils.PortResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Failure 503 {object} utils.ErrorResponseStruct
// @Router /reserve_next [post]
func (h *ReservationHandler) ReserveNext(c *fiber.Ctx) error {
	body := decodeOptionalBody(c)

	port, err := h.Service.ReserveNext(c.UserContext(), body.data())
	if err != nil {
		return respondError(c, err, "reserveNext")
	}

	return utils.SuccessResponse(c, utils.PortResponseStruct{Port: port}, fiber.StatusCreated)
}
