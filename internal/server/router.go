// Package server assembles the HTTP router.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "treasurer/internal/docs" // swagger docs
	"treasurer/internal/handlers"
	"treasurer/internal/middleware"
	"treasurer/internal/services"
)

// maxWebhookBody caps gateway callbacks, which are a few hundred bytes.
const maxWebhookBody = 64 << 10

// Deps are the services the router exposes.
type Deps struct {
	Users        services.UserServicer
	Debts        services.DebtServicer
	Transactions services.TransactionServicer
	Balances     services.BalanceServicer
	Payments     services.PaymentServicer
	Audit        services.AuditServicer
	Extractions  services.ExtractionQueuer

	// PipelineAPIKey guards the manual payment and extraction endpoints.
	PipelineAPIKey string
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps Deps) *gin.Engine {
	userHandler := handlers.NewUserHandler(deps.Users, deps.Balances, deps.Audit)
	debtHandler := handlers.NewDebtHandler(deps.Debts, deps.Audit)
	transactionHandler := handlers.NewTransactionHandler(deps.Transactions, deps.Audit)
	reportHandler := handlers.NewReportHandler(deps.Balances)
	paymentHandler := handlers.NewPaymentHandler(deps.Payments, deps.Audit)
	extractionHandler := handlers.NewExtractionHandler(deps.Extractions)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	users := v1.Group("/users")
	users.POST("", userHandler.CreateUser)
	users.GET("", userHandler.ListUsers)
	users.GET("/:id/balance", userHandler.GetBalance)

	debts := v1.Group("/debts")
	debts.POST("", debtHandler.CreateDebt)
	debts.GET("", debtHandler.ListDebts)

	transactions := v1.Group("/transactions")
	transactions.GET("", transactionHandler.ListTransactions)
	transactions.POST("/expense", transactionHandler.CreateExpense)
	transactions.GET("/:id", transactionHandler.GetTransaction)

	reports := v1.Group("/reports")
	reports.GET("/members", reportHandler.MemberReport)
	reports.GET("/dashboard", reportHandler.Dashboard)

	pipeline := middleware.PipelineAuthMiddleware(deps.PipelineAPIKey)

	payments := v1.Group("/payments")
	payments.POST("/link", paymentHandler.CreatePaymentLink)
	payments.POST("/webhook", middleware.MaxBodyBytes(maxWebhookBody), paymentHandler.Webhook)
	payments.POST("/manual", pipeline, paymentHandler.RecordManualPayment)

	v1.POST("/extractions", pipeline, extractionHandler.Enqueue)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
