package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cashback-service/internal/affiliate"
	"cashback-service/internal/services"
	"cashback-service/pkg/common"
)

func (h *Handler) AwinWebhook(c *gin.Context) {
	h.webhook(c, affiliate.NetworkAwin)
}

func (h *Handler) RakutenWebhook(c *gin.Context) {
	h.webhook(c, affiliate.NetworkRakuten)
}

func (h *Handler) webhook(c *gin.Context, network affiliate.Network) {
	payload, err := readPayload(c)
	if err != nil {
		logrus.WithError(err).WithField("network", network).Warn("Unreadable postback body")
		// The reconciler still records the attempt and rejects the empty envelope.
		payload = map[string]interface{}{}
	}

	resp, err := h.Postbacks.HandlePostback(c.Request.Context(), network, payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) TrackLink(c *gin.Context) {
	var req services.TrackLinkRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, common.InvalidInput("Missing required parameters: url, userId, network"))
		return
	}

	resp, err := h.Tracking.TrackLink(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
