package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/membership/internal/app/service/billing"
	"github.com/fatflowers/membership/pkg/response"
	"github.com/fatflowers/membership/pkg/types"
)

type processBillingRequest struct {
	PaymentTransactionID string `json:"payment_transaction_id"`
}

type updateBillingCycleRequest struct {
	BillingCycle types.BillingCycle `json:"billing_cycle"`
}

type billingFailureRequest struct {
	Reason string `json:"reason"`
}

func ApiProcessBilling(svc *billing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req processBillingRequest
		_ = c.ShouldBindJSON(&req)

		sub, err := svc.ProcessBilling(c.Request.Context(), c.Param("id"), req.PaymentTransactionID)
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

func ApiUpdateBillingCycle(svc *billing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateBillingCycleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		sub, err := svc.UpdateBillingCycle(c.Request.Context(), c.Param("id"), req.BillingCycle)
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

func ApiRecordBillingFailure(svc *billing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req billingFailureRequest
		_ = c.ShouldBindJSON(&req)

		sub, err := svc.RecordBillingFailure(c.Request.Context(), c.Param("id"), req.Reason)
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

func ApiListDueForBilling(svc *billing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		asOf := time.Now()
		if raw := c.Query("as_of"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "as_of must be RFC3339"))
				return
			}
			asOf = parsed
		}

		subs, err := svc.ListDueForBilling(c.Request.Context(), asOf)
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(subs))
	}
}

func RegisterBillingRoutes(r gin.IRouter, svc *billing.Service) {
	r.POST("/subscriptions/:id/billing/process", ApiProcessBilling(svc))
	r.PUT("/subscriptions/:id/billing/cycle", ApiUpdateBillingCycle(svc))
	r.POST("/subscriptions/:id/billing/failure", ApiRecordBillingFailure(svc))
	r.GET("/billing/due", ApiListDueForBilling(svc))
}
