package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/membership/internal/app/service/history"
	"github.com/fatflowers/membership/internal/app/service/lifecycle"
	"github.com/fatflowers/membership/pkg/response"
	"github.com/fatflowers/membership/pkg/types"
)

type transitionRequest struct {
	Reason    string          `json:"reason"`
	Initiator types.Initiator `json:"initiator"`
}

func (r *transitionRequest) initiator() types.Initiator {
	if r == nil || r.Initiator == "" {
		return types.InitiatorUser
	}
	return r.Initiator
}

type changeTierRequest struct {
	Tier      types.Tier      `json:"tier"`
	Initiator types.Initiator `json:"initiator"`
}

func ApiCreateSubscription(svc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req lifecycle.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		sub, err := svc.Create(c.Request.Context(), &req)
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

func ApiGetSubscription(svc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

func ApiListUserSubscriptions(svc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		subs, err := svc.ListByUser(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(subs))
	}
}

func ApiSubscriptionHealth(svc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := svc.CheckHealth(c.Request.Context(), c.Param("id"))
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]string{"health": state}))
	}
}

func ApiSubscriptionHistory(rec *history.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := rec.History(c.Request.Context(), c.Param("id"))
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(records))
	}
}

func ApiActivateSubscription(svc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transitionRequest
		_ = c.ShouldBindJSON(&req)

		sub, err := svc.Activate(c.Request.Context(), c.Param("id"), req.initiator())
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

func ApiCancelSubscription(svc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transitionRequest
		_ = c.ShouldBindJSON(&req)

		sub, err := svc.Cancel(c.Request.Context(), c.Param("id"), req.Reason, req.initiator())
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

func ApiSuspendSubscription(svc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transitionRequest
		_ = c.ShouldBindJSON(&req)

		sub, err := svc.Suspend(c.Request.Context(), c.Param("id"), req.Reason, req.initiator())
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

func ApiResumeSubscription(svc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transitionRequest
		_ = c.ShouldBindJSON(&req)

		sub, err := svc.Resume(c.Request.Context(), c.Param("id"), req.initiator())
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

func ApiChangeTier(svc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changeTierRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		initiator := req.Initiator
		if initiator == "" {
			initiator = types.InitiatorUser
		}

		sub, err := svc.ChangeTier(c.Request.Context(), c.Param("id"), req.Tier, initiator)
		if err != nil {
			status, body := response.FromFailure(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, svc *lifecycle.Service, rec *history.Recorder) {
	r.POST("/subscriptions", ApiCreateSubscription(svc))
	r.GET("/subscriptions/:id", ApiGetSubscription(svc))
	r.GET("/subscriptions/:id/health", ApiSubscriptionHealth(svc))
	r.GET("/subscriptions/:id/history", ApiSubscriptionHistory(rec))
	r.GET("/users/:user_id/subscriptions", ApiListUserSubscriptions(svc))
	r.POST("/subscriptions/:id/activate", ApiActivateSubscription(svc))
	r.POST("/subscriptions/:id/cancel", ApiCancelSubscription(svc))
	r.POST("/subscriptions/:id/suspend", ApiSuspendSubscription(svc))
	r.POST("/subscriptions/:id/resume", ApiResumeSubscription(svc))
	r.POST("/subscriptions/:id/tier", ApiChangeTier(svc))
}
