package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cashback-service/pkg/common"
)

type GrantRoleRequest struct {
	Address string `json:"address" form:"address"`
}

func (h *Handler) GrantMinterRole(c *gin.Context) {
	var req GrantRoleRequest
	_ = c.ShouldBind(&req)

	res, err := h.Roles.GrantMinterRole(c.Request.Context(), req.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	if !res.Success {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": res.Error})
		return
	}

	message := "MINTER_ROLE granted successfully"
	if res.AlreadyGranted {
		message = "Address already has MINTER_ROLE"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         message,
		"transactionHash": res.TransactionHash,
		"address":         req.Address,
	})
}

func (h *Handler) ContractInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "contract": h.Contract.Info(c.Request.Context())})
}

func (h *Handler) MinterRole(c *gin.Context) {
	role, err := h.Contract.MinterRole(c.Request.Context())
	if err != nil {
		respondContractError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"minterRole":      role,
		"contractAddress": h.Contract.Info(c.Request.Context()).Address,
	})
}

func (h *Handler) DefaultAdminRole(c *gin.Context) {
	role, err := h.Contract.DefaultAdminRole(c.Request.Context())
	if err != nil {
		respondContractError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"defaultAdminRole": role,
		"contractAddress":  h.Contract.Info(c.Request.Context()).Address,
	})
}

func (h *Handler) HasRole(c *gin.Context) {
	role, address := c.Param("role"), c.Param("address")

	has, err := h.Contract.HasRole(c.Request.Context(), role, address)
	if err != nil {
		respondContractError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"hasRole":         has,
		"role":            role,
		"address":         address,
		"contractAddress": h.Contract.Info(c.Request.Context()).Address,
	})
}

func (h *Handler) MyRoles(c *gin.Context) {
	roles, err := h.Contract.MyRoles(c.Request.Context())
	if err != nil {
		respondContractError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"address":         roles.Address,
		"roles":           roles.Roles,
		"contractAddress": h.Contract.Info(c.Request.Context()).Address,
	})
}

func (h *Handler) ContractWalletNFTs(c *gin.Context) {
	resp, err := h.Ownership.ContractWalletNFTs(c.Request.Context(), c.Param("walletAddress"))
	if err != nil {
		if common.AsAppError(err).Kind == common.KindInvalidInput {
			respondError(c, err)
			return
		}
		respondContractError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ContractNFT(c *gin.Context) {
	tokenID := c.Param("tokenId")

	resp, err := h.Contract.NFT(c.Request.Context(), tokenID)
	if err != nil {
		appErr := common.AsAppError(err)
		if appErr.Kind == common.KindNotFound {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": appErr.Message, "tokenId": tokenID})
			return
		}
		respondContractError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
