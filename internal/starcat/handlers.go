package starcat

import (
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ItemResponse is the body returned for a known item.
type ItemResponse struct {
	ItemID int `json:"item_id"`
}

// ErrorResponse is the body returned for 404 and 503 responses.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Workers   int       `json:"workers"`
}

// ItemAction serves all three catalog endpoints; they differ only by
// path. Items above the configured limit do not exist.
func (a *App) ItemAction(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 0 {
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{
			Detail: fmt.Sprintf("Item %s was not found.", c.Params("id")),
		})
	}

	if id > a.cfg.IDLimit {
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{
			Detail: fmt.Sprintf("Item %d was not found.", id),
		})
	}

	// c.Context().Done() closes when the server begins shutting down.
	// fasthttp has no per-connection cancel signal, so shutdown is the
	// only event that can interrupt a pending delay.
	if !a.pool.Process(c.Context().Done(), a.delay()) {
		return c.Status(http.StatusServiceUnavailable).JSON(ErrorResponse{
			Detail: "Server overloaded",
		})
	}

	return c.JSON(ItemResponse{ItemID: id})
}

func (a *App) randomDelay() time.Duration {
	ceiling := a.cfg.MaxDelay()
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(ceiling)))
}

// HealthAction handles the health check endpoint
func (a *App) HealthAction(c *fiber.Ctx) error {
	return c.JSON(HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Workers:   a.cfg.Workers,
	})
}
