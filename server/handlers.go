package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kyeworks/bidhall/bidhall/agent"
	"github.com/kyeworks/bidhall/bidhall/auction"
)

// Handlers exposes the auction request surface. All domain failures map to
// structured JSON errors; the engine guarantees no partial mutation behind a
// returned error.
type Handlers struct {
	engine    *auction.Engine
	scheduler *auction.Scheduler
	agents    *agent.Registry
}

func NewHandlers(engine *auction.Engine, scheduler *auction.Scheduler, agents *agent.Registry) *Handlers {
	return &Handlers{
		engine:    engine,
		scheduler: scheduler,
		agents:    agents,
	}
}

type createAuctionRequest struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	StartingPrice   decimal.Decimal `json:"startingPrice"`
	ReservePrice    decimal.Decimal `json:"reservePrice"`
	Increment       decimal.Decimal `json:"increment"`
	DurationSeconds float64         `json:"duration"`
}

func (h *Handlers) createAuction(c *fiber.Ctx) error {
	var req createAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return sendFailure(c, auction.ErrInvalidSpec)
	}

	a, err := h.engine.Create(c.Context(), auction.CreateSpec{
		Title:         req.Title,
		Description:   req.Description,
		StartingPrice: req.StartingPrice,
		ReservePrice:  req.ReservePrice,
		Increment:     req.Increment,
		Duration:      time.Duration(req.DurationSeconds * float64(time.Second)),
	})
	if err != nil {
		return sendFailure(c, err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{"auction": a})
}

func (h *Handlers) listAuctions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"auctions": h.engine.List(c.Context())})
}

func (h *Handlers) getAgents(c *fiber.Ctx) error {
	ownerID := c.Params("user_id")
	if ownerID == "" {
		return sendFailure(c, auction.ErrInvalidSpec)
	}
	return c.JSON(fiber.Map{"agents": h.agents.ForOwner(ownerID)})
}

type startAuctionRequest struct {
	AuctionID string `json:"auction_id"`
	UserID    string `json:"user_id"`
	AgentID   string `json:"selected_agent"`
}

func (h *Handlers) startAuction(c *fiber.Ctx) error {
	var req startAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return sendFailure(c, auction.ErrInvalidSpec)
	}
	if req.AuctionID == "" || req.UserID == "" || req.AgentID == "" {
		return sendFailure(c, auction.ErrInvalidSpec)
	}

	a, started, err := h.engine.Start(c.Context(), req.AuctionID, req.UserID, req.AgentID)
	if err != nil {
		return sendFailure(c, err)
	}

	if started {
		h.scheduler.Launch(req.AuctionID)

		// Opening round fires immediately so the room sees movement
		// before the first scheduler tick.
		if _, err := h.engine.ResolveRound(c.Context(), req.AuctionID); err != nil {
			return sendFailure(c, err)
		}
		if refreshed, err := h.engine.Get(c.Context(), req.AuctionID); err == nil {
			a = refreshed
		}
	}

	return c.JSON(fiber.Map{"auction": a})
}

type placeBidRequest struct {
	AuctionID string          `json:"auction_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
}

func (h *Handlers) placeBid(c *fiber.Ctx) error {
	var req placeBidRequest
	if err := c.BodyParser(&req); err != nil {
		return sendFailure(c, auction.ErrInvalidSpec)
	}
	if req.AuctionID == "" || req.UserID == "" {
		return sendFailure(c, auction.ErrInvalidSpec)
	}

	bid, err := h.engine.PlaceBid(c.Context(), req.AuctionID, req.UserID, req.Amount)
	if err != nil {
		return sendFailure(c, err)
	}

	a, err := h.engine.Get(c.Context(), req.AuctionID)
	if err != nil {
		return sendFailure(c, err)
	}

	return c.JSON(fiber.Map{"bid": bid, "auction": a})
}

type simulateBidRequest struct {
	AuctionID string `json:"auction_id"`
}

// simulateBid triggers one round resolution outside the scheduler cadence,
// with the same contract as a scheduler tick.
func (h *Handlers) simulateBid(c *fiber.Ctx) error {
	var req simulateBidRequest
	if err := c.BodyParser(&req); err != nil || req.AuctionID == "" {
		return sendFailure(c, auction.ErrInvalidSpec)
	}

	bid, err := h.engine.ResolveRound(c.Context(), req.AuctionID)
	if err != nil {
		return sendFailure(c, err)
	}

	if bid == nil {
		return c.JSON(fiber.Map{"success": false, "message": "No bid was placed"})
	}

	a, err := h.engine.Get(c.Context(), req.AuctionID)
	if err != nil {
		return sendFailure(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "bid": bid, "auction": a})
}

func sendFailure(c *fiber.Ctx, err error) error {
	return c.Status(failureStatus(err)).JSON(fiber.Map{"error": err.Error()})
}

func failureStatus(err error) int {
	switch {
	case errors.Is(err, auction.ErrInvalidSpec), errors.Is(err, auction.ErrBidTooLow):
		return http.StatusBadRequest
	case errors.Is(err, auction.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auction.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
