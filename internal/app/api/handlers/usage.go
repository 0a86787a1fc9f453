package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/membership/internal/app/service/usage"
	"github.com/fatflowers/membership/pkg/response"
	"github.com/fatflowers/membership/pkg/types"
)

type incrementUsageRequest struct {
	Amount int64 `json:"amount"`
}

func ApiListUsage(svc *usage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.Records(c.Request.Context(), c.Param("id"))
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

func ApiCheckFeature(svc *usage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		feature := types.Feature(c.Param("feature"))
		allowed, err := svc.CanUseFeature(c.Request.Context(), c.Param("id"), feature)
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]bool{"allowed": allowed}))
	}
}

func ApiIncrementUsage(svc *usage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := incrementUsageRequest{Amount: 1}
		_ = c.ShouldBindJSON(&req)

		row, err := svc.IncrementUsage(c.Request.Context(), c.Param("id"), types.Feature(c.Param("feature")), req.Amount)
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(row))
	}
}

func ApiResetUsage(svc *usage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.ResetUsageForBillingPeriod(c.Request.Context(), c.Param("id")); err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "reset"}))
	}
}

func RegisterUsageRoutes(r gin.IRouter, svc *usage.Service) {
	r.GET("/subscriptions/:id/usage", ApiListUsage(svc))
	r.GET("/subscriptions/:id/usage/:feature/check", ApiCheckFeature(svc))
	r.POST("/subscriptions/:id/usage/:feature/increment", ApiIncrementUsage(svc))
	r.POST("/subscriptions/:id/usage/reset", ApiResetUsage(svc))
}
