package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/medreza/honcho-benefit-service/pkg/access"
	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/medreza/honcho-benefit-service/pkg/repository"
	"github.com/medreza/honcho-benefit-service/pkg/token"
	"github.com/sirupsen/logrus"
)

type AccessHandler struct {
	service *access.Service
}

func NewAccessHandler(service *access.Service) *AccessHandler {
	return &AccessHandler{service: service}
}

func (h *AccessHandler) ValidateAccess(c *gin.Context) {
	var req models.ValidateAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithField("error", err).Warn("ValidateAccess: Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	decision, err := h.service.ValidateAccess(c.Request.Context(), access.ValidateRequest{
		MemberID:   req.MemberID,
		MerchantID: req.MerchantID,
		BenefitID:  req.BenefitID,
		Client:     clientMetadata(c, req.Device, req.Location, req.Extra),
	})
	if err != nil {
		log := logrus.WithFields(logrus.Fields{
			"member_id":   req.MemberID,
			"merchant_id": req.MerchantID,
			"benefit_id":  req.BenefitID,
		})
		writeValidationError(c, log, "ValidateAccess", err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

func (h *AccessHandler) ScanToken(c *gin.Context) {
	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithField("error", err).Warn("ScanToken: Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	decision, err := h.service.ValidateToken(c.Request.Context(), req.MemberID, req.Token,
		clientMetadata(c, req.Device, req.Location, req.Extra))
	if err != nil {
		log := logrus.WithField("member_id", req.MemberID)
		switch {
		case errors.Is(err, token.ErrExpiredToken):
			log.Warn("ScanToken: Token expired")
			c.JSON(http.StatusGone, gin.H{"error": "Code expired, ask the merchant for a new one"})
		case errors.Is(err, token.ErrMalformedToken):
			log.WithError(err).Warn("ScanToken: Malformed token")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid code"})
		default:
			writeValidationError(c, log, "ScanToken", err)
		}
		return
	}

	c.JSON(http.StatusOK, decision)
}

func (h *AccessHandler) IssueToken(c *gin.Context) {
	merchantID := c.Param("id")
	if merchantID == "" {
		logrus.Warn("IssueToken: Merchant id is required")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Merchant id is required"})
		return
	}

	var req models.IssueTokenRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logrus.WithField("error", err).Warn("IssueToken: Invalid request body")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
	}

	raw, err := h.service.IssueToken(c.Request.Context(), merchantID, req.BenefitID)
	if err != nil {
		log := logrus.WithField("merchant_id", merchantID)
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("IssueToken: Merchant not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Merchant not found"})
			return
		}
		log.WithError(err).Error("IssueToken: Failed to issue token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": raw, "expires_in": int(token.TTL.Seconds())})
}

func writeValidationError(c *gin.Context, log *logrus.Entry, op string, err error) {
	switch {
	case errors.Is(err, access.ErrMemberNotFound):
		log.Warn(op + ": Member not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
	case errors.Is(err, access.ErrMerchantNotFound):
		log.Warn(op + ": Merchant not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Merchant not found"})
	default:
		log.WithError(err).Error(op + ": Failed to validate access")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate access"})
	}
}

func clientMetadata(c *gin.Context, device string, location *models.GeoPoint, extra map[string]string) models.ClientMetadata {
	if device == "" {
		device = deviceClass(c.Request.UserAgent())
	}
	return models.ClientMetadata{
		DeviceClass: device,
		Location:    location,
		Extra:       extra,
	}
}

func deviceClass(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return "unknown"
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return "mobile"
	default:
		return "desktop"
	}
}
