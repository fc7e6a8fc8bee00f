// Package server hosts the HTTP and WebSocket surface over the auction
// engine.
package server

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/kyeworks/bidhall/bidhall/agent"
	"github.com/kyeworks/bidhall/bidhall/auction"
)

// New assembles the fiber application: the JSON API under /api/auction and
// room-scoped event subscriptions under /ws/auction/:id.
func New(engine *auction.Engine, scheduler *auction.Scheduler, agents *agent.Registry, hub *Hub) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "bidhall",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	h := NewHandlers(engine, scheduler, agents)

	api := app.Group("/api/auction")
	api.Post("/create", h.createAuction)
	api.Get("/get-auction", h.listAuctions)
	api.Get("/get-agents/:user_id", h.getAgents)
	api.Post("/start", h.startAuction)
	api.Post("/bid", h.placeBid)
	api.Post("/simulate-bid", h.simulateBid)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/auction/:id", websocket.New(func(conn *websocket.Conn) {
		hub.Serve(conn.Params("id"), conn)
	}))

	return app
}
