package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/medreza/honcho-benefit-service/pkg/access"
	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/medreza/honcho-benefit-service/pkg/repository"
	"github.com/medreza/honcho-benefit-service/pkg/stats"
	"github.com/sirupsen/logrus"
)

type BenefitHandler struct {
	service *access.Service
	stats   *stats.Aggregator
}

func NewBenefitHandler(service *access.Service, aggregator *stats.Aggregator) *BenefitHandler {
	return &BenefitHandler{service: service, stats: aggregator}
}

func (h *BenefitHandler) GetBenefit(c *gin.Context) {
	id := c.Param("id")

	benefit, err := h.service.GetBenefit(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logrus.WithField("benefit_id", id).Warn("GetBenefit: Benefit not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Benefit not found"})
			return
		}
		logrus.WithField("benefit_id", id).WithError(err).Error("GetBenefit: Failed to get benefit")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get benefit"})
		return
	}

	c.JSON(http.StatusOK, benefit)
}

func (h *BenefitHandler) RedeemBenefit(c *gin.Context) {
	benefitID := c.Param("id")

	var req models.RedeemBenefitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithField("error", err).Warn("RedeemBenefit: Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	rec, err := h.service.Redeem(c.Request.Context(), access.RedeemRequest{
		BenefitID:      benefitID,
		MemberID:       req.MemberID,
		MerchantID:     req.MerchantID,
		AssociationID:  req.AssociationID,
		PurchaseAmount: req.PurchaseAmount,
	})
	if err != nil {
		log := logrus.WithFields(logrus.Fields{
			"benefit_id":  benefitID,
			"member_id":   req.MemberID,
			"merchant_id": req.MerchantID,
		})

		var denial *access.DenialError
		switch {
		case errors.As(err, &denial):
			log.WithField("result", denial.Result).Warn("RedeemBenefit: Redemption denied")
			c.JSON(http.StatusConflict, gin.H{"error": denial.Reason, "result": denial.Result})
		case errors.Is(err, access.ErrMemberNotFound):
			log.Warn("RedeemBenefit: Member not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		case errors.Is(err, access.ErrMerchantNotFound):
			log.Warn("RedeemBenefit: Merchant not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Merchant not found"})
		case errors.Is(err, access.ErrInvalidRequest):
			log.WithError(err).Warn("RedeemBenefit: Invalid request")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.WithError(err).Error("RedeemBenefit: Failed to redeem benefit")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to redeem benefit"})
		}
		return
	}

	c.JSON(http.StatusCreated, rec)
}

func (h *BenefitHandler) ListAvailable(c *gin.Context) {
	memberID := c.Param("id")
	associationID := c.Query("association_id")
	if associationID == "" {
		logrus.WithField("member_id", memberID).Warn("ListAvailable: Association id is required")
		c.JSON(http.StatusBadRequest, gin.H{"error": "association_id is required"})
		return
	}

	benefits, err := h.service.ListAvailable(c.Request.Context(), memberID, associationID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"member_id":      memberID,
			"association_id": associationID,
		}).WithError(err).Error("ListAvailable: Failed to list benefits")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list benefits"})
		return
	}

	if benefits == nil {
		benefits = make([]models.Benefit, 0)
	}
	c.JSON(http.StatusOK, benefits)
}

func (h *BenefitHandler) History(c *gin.Context) {
	memberID := c.Param("id")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			logrus.WithField("limit", raw).Warn("History: Invalid limit")
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	records, err := h.service.History(c.Request.Context(), memberID, limit)
	if err != nil {
		logrus.WithField("member_id", memberID).WithError(err).Error("History: Failed to get history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get history"})
		return
	}

	c.JSON(http.StatusOK, records)
}

func (h *BenefitHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.stats.Get(c.Request.Context(), c.Param("id")))
}
