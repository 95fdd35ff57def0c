package handler

import (
	"net/http"

	"Community_Channels/internal/middleware"
	"Community_Channels/internal/service"

	"github.com/gin-gonic/gin"
)

// MembershipHandler 加入申请的审批面（管理端）
type MembershipHandler struct {
	memberships *service.MembershipService
}

func NewMembershipHandler(memberships *service.MembershipService) *MembershipHandler {
	return &MembershipHandler{memberships: memberships}
}

// ListPending 待审申请按用户分组
func (h *MembershipHandler) ListPending(c *gin.Context) {
	admin := middleware.CurrentIdentity(c)
	groups, err := h.memberships.ListPending(admin)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": groups})
}

func (h *MembershipHandler) decide(c *gin.Context, approve bool) {
	admin := middleware.CurrentIdentity(c)
	userID, ok := parseID(c, "user")
	if !ok {
		return
	}
	channelID, ok := parseID(c, "channel")
	if !ok {
		return
	}

	if err := h.memberships.Decide(admin, userID, channelID, approve); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *MembershipHandler) Accept(c *gin.Context) { h.decide(c, true) }
func (h *MembershipHandler) Reject(c *gin.Context) { h.decide(c, false) }

func (h *MembershipHandler) decideAll(c *gin.Context, approve bool) {
	admin := middleware.CurrentIdentity(c)
	userID, ok := parseID(c, "user")
	if !ok {
		return
	}

	n, err := h.memberships.BulkDecide(admin, userID, approve)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decided": n})
}

func (h *MembershipHandler) AcceptAll(c *gin.Context) { h.decideAll(c, true) }
func (h *MembershipHandler) RejectAll(c *gin.Context) { h.decideAll(c, false) }
