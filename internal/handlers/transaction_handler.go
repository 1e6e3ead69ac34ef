package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cashback-service/internal/repository"
	"cashback-service/pkg/common"
)

type StatusChangeRequest struct {
	Status string `json:"status" form:"status"`
	Notes  string `json:"notes" form:"notes"`
}

func (h *Handler) GetTransactions(c *gin.Context) {
	page := common.ParsePage(c.Query("limit"), c.Query("offset"), 50, 500)

	transactions, err := h.Transactions.List(c.Request.Context(), repository.TransactionFilter{
		UserID:  c.Param("userId"),
		Status:  c.Query("status"),
		Network: c.Query("network"),
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

func (h *Handler) GetPurchases(c *gin.Context) {
	purchases, err := h.Transactions.Purchases(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.Transactions.Stats(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetUserNFTs(c *gin.Context) {
	nfts, err := h.Transactions.UserNFTs(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nfts": nfts})
}

func (h *Handler) GetPostbackLogs(c *gin.Context) {
	page := common.ParsePage(c.Query("limit"), c.Query("offset"), 100, 1000)
	filter := repository.PostbackLogFilter{
		Network: c.Query("network"),
		Limit:   page.Limit,
		Offset:  page.Offset,
	}
	if raw, ok := c.GetQuery("processed"); ok {
		processed, _ := strconv.ParseBool(raw)
		filter.Processed = &processed
	}

	logs, err := h.Transactions.PostbackLogs(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *Handler) ConfirmCashback(c *gin.Context) {
	var req StatusChangeRequest
	// An unreadable body leaves Status empty, which the service rejects.
	_ = c.ShouldBind(&req)

	res, err := h.Transactions.ConfirmCashback(c.Request.Context(), c.Param("transactionId"), req.Status, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateNFTStatus(c *gin.Context) {
	var req StatusChangeRequest
	_ = c.ShouldBind(&req)

	res, err := h.Transactions.UpdateNFTStatus(c.Request.Context(), c.Param("tokenId"), req.Status, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) RetryMint(c *gin.Context) {
	res, err := h.MintRetry.Schedule(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	switch {
	case res.Queued:
		status = http.StatusAccepted
	case !res.Success:
		status = http.StatusInternalServerError
	}
	c.JSON(status, res)
}
