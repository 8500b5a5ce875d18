package handlers

import (
	"github.com/gin-gonic/gin"
)

func NewRouter(accessHandler *AccessHandler, benefitHandler *BenefitHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	api := router.Group("/api")
	{
		api.POST("/access/validate", accessHandler.ValidateAccess)
		api.POST("/access/scan", accessHandler.ScanToken)
		api.POST("/merchants/:id/tokens", accessHandler.IssueToken)

		api.GET("/benefits/:id", benefitHandler.GetBenefit)
		api.POST("/benefits/:id/redeem", benefitHandler.RedeemBenefit)

		api.GET("/members/:id/benefits", benefitHandler.ListAvailable)
		api.GET("/members/:id/redemptions", benefitHandler.History)
		api.GET("/members/:id/stats", benefitHandler.Stats)
	}

	return router
}
