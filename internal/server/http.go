package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type httpServer struct {
	latency time.Duration
}

type healthResponse struct {
	Status string `json:"status"`
}

type calcRequest struct {
	Equation *string `json:"equation"`
}

type calcResponse struct {
	Result   string `json:"result"`
	Equation string `json:"equation"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Equation string `json:"equation"`
}

func (h *httpServer) getHealthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "UP"})
}

func (h *httpServer) postCalc(c *gin.Context) {
	var req calcRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Equation == nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "request body must be a JSON object with an equation"})
		return
	}
	equation := *req.Equation

	if h.latency > 0 {
		select {
		case <-time.After(h.latency):
		case <-c.Request.Context().Done():
			return
		}
	}

	result, err := Evaluate(equation)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Equation: equation})
		return
	}
	c.JSON(http.StatusOK, calcResponse{Result: result, Equation: equation})
}
