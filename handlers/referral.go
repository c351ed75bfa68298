// handlers/referral_routes.go
package handlers

import (
	"log"
	"regexp"

	"referral-service/services"

	"github.com/gofiber/fiber/v2"
)

var platformPattern = regexp.MustCompile(`^(ios|android)$`)

func SetupReferralRoutes(app *fiber.App, svc *services.ReferralService) {
	referrals := app.Group("/referrals")

	referrals.Get("/new-link", createLink(svc))
	referrals.Post("/attribute", attribute(svc))
	referrals.Post("/claim", claim(svc))
	referrals.Get("/my-referrals", myReferrals(svc))
}

// createLink issues (or re-issues) the caller's shareable referral link.
// User identity arrives via the gateway's X-User-ID header.
func createLink(svc *services.ReferralService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing X-User-ID header"})
		}

		link, err := svc.CreateLink(userID, c.Query("campaign"))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(link)
	}
}

// attribute matches a fresh device installation to a referral code
// (deferred deep-link attribution).
func attribute(svc *services.ReferralService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			DeviceID     string `json:"device_id"`
			ReferralCode string `json:"referral_code"`
			Platform     string `json:"platform"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.DeviceID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "device_id is required"})
		}
		if len(req.ReferralCode) < 5 || len(req.ReferralCode) > 20 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "referral_code must be 5-20 characters"})
		}
		if !platformPattern.MatchString(req.Platform) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "platform must be 'ios' or 'android'"})
		}

		att, err := svc.Attribute(req.DeviceID, req.ReferralCode, req.Platform)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(att)
	}
}

// claim finalizes a referral after the attributed device's owner registers.
func claim(svc *services.ReferralService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			UserID           string `json:"user_id"`
			AttributionToken string `json:"attribution_token"`
			DeviceID         string `json:"device_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.UserID == "" || req.AttributionToken == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and attribution_token are required"})
		}

		result, err := svc.Claim(req.UserID, req.AttributionToken, req.DeviceID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	}
}

// myReferrals lists the caller's completed referrals, optionally filtered by status.
func myReferrals(svc *services.ReferralService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing X-User-ID header"})
		}

		refs, err := svc.ListReferrals(userID, c.Query("status"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(refs)
	}
}

func respondError(c *fiber.Ctx, err error) error {
	kind := services.KindOf(err)
	if kind == "" {
		log.Printf("❌ Unexpected error on %s: %v", c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "An unexpected error occurred"})
	}
	return c.Status(statusForKind(kind)).JSON(fiber.Map{"error": err.Error()})
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.ErrInvalidInput:
		return fiber.StatusBadRequest
	case services.ErrNotFound:
		return fiber.StatusNotFound
	case services.ErrExpired:
		return fiber.StatusGone
	default:
		// already_attributed, invalid_token, self_referral, already_claimed, conflict
		return fiber.StatusConflict
	}
}
