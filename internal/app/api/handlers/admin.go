package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/membership/internal/app/service/statistics"
	"github.com/fatflowers/membership/internal/store"
	"github.com/fatflowers/membership/pkg/response"
)

type snapshotRunRequest struct {
	// Date in YYYY-MM-DD form; today when omitted.
	Date string `json:"date"`
}

func ApiScanSubscriptions(subs store.SubscriptionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req store.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := subs.Scan(c.Request.Context(), &req)
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func ApiGetStatistics(stats *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.StatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := stats.GetStatistics(c.Request.Context(), &req)
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func ApiRunSnapshots(stats *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req snapshotRunRequest
		_ = c.ShouldBindJSON(&req)

		date := time.Now()
		if req.Date != "" {
			parsed, err := time.Parse(time.DateOnly, req.Date)
			if err != nil {
				c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "date must be YYYY-MM-DD"))
				return
			}
			date = parsed
		}

		count, err := stats.SnapshotLiveSubscriptions(c.Request.Context(), date)
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]int{"snapshots": count}))
	}
}

func RegisterAdminRoutes(r gin.IRouter, subs store.SubscriptionStore, stats *statistics.Service) {
	r.POST("/subscriptions/scan", ApiScanSubscriptions(subs))
	r.POST("/statistics", ApiGetStatistics(stats))
	r.POST("/snapshots/run", ApiRunSnapshots(stats))
}
