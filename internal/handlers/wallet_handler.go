package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetWalletNFTs(c *gin.Context) {
	resp, err := h.Ownership.WalletNFTs(c.Request.Context(), c.Param("walletAddress"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetNFT(c *gin.Context) {
	resp, err := h.Ownership.NFTByToken(c.Request.Context(), c.Param("tokenId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
