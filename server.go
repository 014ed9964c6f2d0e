package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Utsav173/expense-tracker-sub003/config"
	"github.com/Utsav173/expense-tracker-sub003/middlewares"
	"github.com/Utsav173/expense-tracker-sub003/models"
	"github.com/Utsav173/expense-tracker-sub003/utils"
	"github.com/Utsav173/expense-tracker-sub003/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// errorStatus maps domain errors to HTTP statuses. Unrecognized errors are
// treated as server-side.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrorInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, utils.ErrorInvalidAmount),
		errors.Is(err, utils.ErrorInvalidCategory),
		errors.Is(err, utils.ErrorMissingRecurrenceType),
		errors.Is(err, utils.ErrorDateParse):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(validationErrs)})
		return
	}
	c.JSON(errorStatus(err), gin.H{"error": err.Error()})
}

func currentUserId(c *gin.Context) int {
	userId, _ := utils.GetUserIdFromContext(c.Request.Context())
	return userId
}

func requestTimezone(c *gin.Context) string {
	if tz, ok := utils.GetTimezoneFromContext(c.Request.Context()); ok {
		return tz
	}
	return utils.LedgerTimezone()
}

func signupHandler(c *gin.Context) {
	var input models.NewUser
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, err)
		return
	}
	user, err := models.CreateUser(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func loginHandler(c *gin.Context) {
	var input models.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, err)
		return
	}
	token, user, err := models.Login(c.Request.Context(), &input)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func createAccountHandler(c *gin.Context) {
	var input models.NewAccount
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, err)
		return
	}
	account, err := models.CreateAccount(c.Request.Context(), currentUserId(c), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func listAccountsHandler(c *gin.Context) {
	accounts, err := models.GetAccounts(c.Request.Context(), currentUserId(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func getAccountHandler(c *gin.Context) {
	accountId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}
	account, err := models.GetAccount(c.Request.Context(), currentUserId(c), accountId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func deleteAccountHandler(c *gin.Context) {
	accountId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}
	if err := models.DeleteAccount(c.Request.Context(), currentUserId(c), accountId); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func createCategoryHandler(c *gin.Context) {
	var input models.NewCategory
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, err)
		return
	}
	category, err := models.CreateCategory(c.Request.Context(), currentUserId(c), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func createSharedCategoryHandler(c *gin.Context) {
	var input models.NewCategory
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, err)
		return
	}
	category, err := models.CreateSharedCategory(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func listCategoriesHandler(c *gin.Context) {
	categories, err := models.GetCategories(c.Request.Context(), currentUserId(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func createTransactionHandler(c *gin.Context) {
	var input models.NewTransaction
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, err)
		return
	}
	transaction, err := models.CreateTransaction(c.Request.Context(), models.UserActor(currentUserId(c)), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, transaction)
}

type bulkTransactionsRequest struct {
	AccountId    int                      `json:"account_id" binding:"required"`
	Transactions []*models.NewTransaction `json:"transactions" binding:"required"`
}

func createTransactionsBulkHandler(c *gin.Context) {
	var req bulkTransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, err)
		return
	}
	rows, err := models.CreateTransactionsBulk(c.Request.Context(), currentUserId(c), req.AccountId, req.Transactions)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": len(rows), "transactions": rows})
}

func listTransactionsHandler(c *gin.Context) {
	accountId, err := strconv.Atoi(c.Query("account_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}
	transactions, err := models.GetTransactions(c.Request.Context(), currentUserId(c), accountId, c.Query("duration"), requestTimezone(c), page)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}

func getTransactionHandler(c *gin.Context) {
	transaction, err := models.GetTransaction(c.Request.Context(), currentUserId(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, transaction)
}

func updateTransactionHandler(c *gin.Context) {
	var updates models.TransactionUpdates
	if err := c.ShouldBindJSON(&updates); err != nil {
		abortWithError(c, err)
		return
	}
	transaction, err := models.UpdateTransaction(c.Request.Context(), c.Param("id"), currentUserId(c), &updates)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, transaction)
}

func deleteTransactionHandler(c *gin.Context) {
	if err := models.DeleteTransaction(c.Request.Context(), c.Param("id"), currentUserId(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func getAnalyticsHandler(c *gin.Context) {
	accountId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}
	analytics, err := models.GetAccountAnalytics(c.Request.Context(), currentUserId(c), accountId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func resyncAnalyticsHandler(c *gin.Context) {
	accountId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}
	// ownership check before the rebuild touches anything
	if _, err := models.GetAccount(c.Request.Context(), currentUserId(c), accountId); err != nil {
		abortWithError(c, err)
		return
	}
	if err := models.ResyncAccountAnalytics(c.Request.Context(), accountId); err != nil {
		abortWithError(c, err)
		return
	}
	analytics, err := models.GetAccountAnalytics(c.Request.Context(), currentUserId(c), accountId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func resolveDateRangeHandler(c *gin.Context) {
	expression := c.Query("expression")
	if expression == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expression is required"})
		return
	}
	dateRange, err := utils.ResolveDateRange(expression, requestTimezone(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"start": dateRange.Start.Format(time.RFC3339Nano),
		"end":   dateRange.End.Format(time.RFC3339Nano),
	})
}

func runRecurringPassHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := workflow.RunRecurringGenerationPass(c.Request.Context(), logger)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger logs only requests that attached errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	godotenv.Load()

	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server before the DB is ready; app endpoints return 503
	// until dependencies come up.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "X-Timezone")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/signup", signupHandler)
	r.POST("/login", loginHandler)

	authed := r.Group("/", middlewares.RequireAuth())
	authed.POST("/accounts", createAccountHandler)
	authed.GET("/accounts", listAccountsHandler)
	authed.GET("/accounts/:id", getAccountHandler)
	authed.DELETE("/accounts/:id", deleteAccountHandler)
	authed.GET("/accounts/:id/analytics", getAnalyticsHandler)
	authed.POST("/accounts/:id/analytics/resync", resyncAnalyticsHandler)
	authed.POST("/categories", createCategoryHandler)
	authed.GET("/categories", listCategoriesHandler)
	authed.POST("/transactions", createTransactionHandler)
	authed.POST("/transactions/bulk", createTransactionsBulkHandler)
	authed.GET("/transactions", listTransactionsHandler)
	authed.GET("/transactions/:id", getTransactionHandler)
	authed.PUT("/transactions/:id", updateTransactionHandler)
	authed.DELETE("/transactions/:id", deleteTransactionHandler)
	authed.GET("/date-range/resolve", resolveDateRangeHandler)

	// Ops tooling (admin only).
	ops := authed.Group("/internal/ops", middlewares.RequireAdmin())
	ops.POST("/recurring/run", runRecurringPassHandler(logger))
	ops.POST("/categories/shared", createSharedCategoryHandler)

	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedis()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	// AutoMigrate can run blocking DDL; allow running migrations as a
	// separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateDatabase(); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Panic(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{
		"port": port,
	}).Info("ledger API listening")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
