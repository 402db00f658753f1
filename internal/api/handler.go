package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/service"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orders   *service.OrderPlacementService
	payments *service.PaymentSessionManager
	settings *service.SettingsService
	catalog  *store.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders *service.OrderPlacementService,
	payments *service.PaymentSessionManager,
	settings *service.SettingsService,
	catalog *store.Store,
) *Handler {
	return &Handler{
		orders:   orders,
		payments: payments,
		settings: settings,
		catalog:  catalog,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/categories", h.listCategories)
		v1.GET("/brands", h.listBrands)

		v1.POST("/orders", h.placeOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/pay", h.retryPayment)

		v1.POST("/payments/webhook", h.paymentWebhook)

		admin := v1.Group("/admin")
		h.setupAdminRoutes(admin)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listProducts returns the catalog, each product with its variants.
func (h *Handler) listProducts(c *gin.Context) {
	var categoryID *int64
	if raw := c.Query("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
			return
		}
		categoryID = &id
	}

	products, err := h.catalog.GetProducts(c.Request.Context(), categoryID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProduct returns one product and its variants.
func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	product, err := h.catalog.GetProductByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	variants, err := h.catalog.GetVariantsByProductID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product, "variants": variants})
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.GetCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *Handler) listBrands(c *gin.Context) {
	brands, err := h.catalog.GetBrands(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brands": brands})
}

// placeOrder handles order placement
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.orders.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// listOrders returns the requesting user's orders.
func (h *Handler) listOrders(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, items, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

// retryPayment opens a fresh payment session for a pending card order.
func (h *Handler) retryPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, _, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if order.PaymentMethod != models.PaymentMethodCreditCard ||
		order.PaymentStatus != models.PaymentStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "Order is not awaiting card payment"})
		return
	}

	redirectURL, err := h.payments.StartPayment(c.Request.Context(), order)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"redirect_url": redirectURL})
}

// paymentWebhook consumes the provider's asynchronous outcome callback. The
// raw body is parsed so the signed fields reach signature verification.
// Unknown sessions are acknowledged so the provider stops redelivering;
// transient store failures return 500 to allow provider-side retry.
func (h *Handler) paymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable webhook payload"})
		return
	}
	payload, err := service.ParseWebhookPayload(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed webhook payload"})
		return
	}
	if payload.Reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing merchant reference"})
		return
	}

	if err := h.payments.Reconcile(c.Request.Context(), payload); err != nil {
		switch err.(type) {
		case *models.NotFoundError:
			util.GetLogger().Warn("Webhook for unknown payment session")
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		case *models.InvalidSignatureError:
			util.GetLogger().Warn("Webhook signature rejected")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook signature"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Reconciliation failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// pathID parses a numeric path parameter, responding 400 itself on failure.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// respondError maps the domain error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch e := err.(type) {
	case *models.ValidationError:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Validation failed",
			"fields": e.Fields,
		})
	case *models.InsufficientStockError:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      "Insufficient stock",
			"shortfalls": e.Shortfalls,
		})
	case *models.OutOfDeliveryRangeError:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":       "Delivery not available for this distance",
			"distance_km": e.DistanceKm,
			"max_km":      e.MaxKm,
		})
	case *models.NotFoundError:
		c.JSON(http.StatusNotFound, gin.H{"error": e.Error()})
	case *models.BrandInUseError:
		c.JSON(http.StatusConflict, gin.H{"error": e.Error()})
	case *models.TerminalOrderError:
		c.JSON(http.StatusConflict, gin.H{"error": e.Error()})
	case *models.PaymentProviderError:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment provider unavailable, please try again"})
	case *models.UnknownProviderError:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment provider misconfigured"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
