// Package admin implements the REST API handlers for admin operations.
// It provides endpoints to trigger a dependency scan and to inspect or clear the vulnerability cache.
package admin

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"

	"github.com/ortelius/pdvd-depscan/model"
	"github.com/ortelius/pdvd-depscan/vulncache"
)

// Scanner runs one dependency scan
type Scanner interface {
	ScanOnce(ctx context.Context) (model.ScanSummary, error)
}

var scanRunning atomic.Bool

// PostScan runs a dependency scan and returns its summary. Only one manual scan runs at a time.
func PostScan(scanner Scanner) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !scanRunning.CompareAndSwap(false, true) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "Scan already in progress",
			})
		}
		defer scanRunning.Store(false)

		summary, err := scanner.ScanOnce(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"success": false,
				"message": "Scan failed: " + err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": fmt.Sprintf("Scanned %d dependencies", summary.Scanned),
			"summary": summary,
		})
	}
}

// GetCacheStatus reports the number of cached entries
func GetCacheStatus(cache *vulncache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"success": true,
			"entries": cache.Len(),
		})
	}
}

// DeleteCache drops every cached vulnerability result
func DeleteCache(cache *vulncache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cleared := cache.Len()
		cache.Clear()
		return c.JSON(fiber.Map{
			"success": true,
			"message": fmt.Sprintf("Cleared %d cache entries", cleared),
		})
	}
}
