package router

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/marketplace-backend/config"
	"github.com/ikkim/marketplace-backend/internal/app/controller"
	"github.com/ikkim/marketplace-backend/internal/middleware"
)

type Router struct {
	authController         *controller.AuthController
	productController      *controller.ProductController
	categoryController     *controller.CategoryController
	reviewController       *controller.ReviewController
	cartController         *controller.CartController
	orderController        *controller.OrderController
	paymentController      *controller.PaymentController
	sellerController       *controller.SellerController
	adminController        *controller.AdminController
	notificationController *controller.NotificationController
	uploadController       *controller.UploadController
	authMiddleware         *middleware.AuthMiddleware
	config                 *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	productController *controller.ProductController,
	categoryController *controller.CategoryController,
	reviewController *controller.ReviewController,
	cartController *controller.CartController,
	orderController *controller.OrderController,
	paymentController *controller.PaymentController,
	sellerController *controller.SellerController,
	adminController *controller.AdminController,
	notificationController *controller.NotificationController,
	uploadController *controller.UploadController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:         authController,
		productController:      productController,
		categoryController:     categoryController,
		reviewController:       reviewController,
		cartController:         cartController,
		orderController:        orderController,
		paymentController:      paymentController,
		sellerController:       sellerController,
		adminController:        adminController,
		notificationController: notificationController,
		uploadController:       uploadController,
		authMiddleware:         authMiddleware,
		config:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "Marketplace API is running",
		})
	})

	authenticate := r.authMiddleware.Authenticate()

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.POST("/logout", authenticate, r.authController.Logout)
			auth.GET("/me", authenticate, r.authController.GetMe)
			auth.PUT("/me", authenticate, r.authController.UpdateMe)
		}

		products := v1.Group("/products")
		{
			products.GET("", r.productController.GetAllProducts)
			products.GET("/best-sellers", r.productController.GetBestSellers)
			products.GET("/:id", r.productController.GetProductByID)
			products.GET("/:id/reviews", r.reviewController.GetProductReviews)
			products.POST("/:id/reviews", authenticate, r.reviewController.CreateReview)

			products.POST("",
				authenticate,
				r.authMiddleware.RequireApprovedSeller(),
				r.productController.CreateProduct,
			)
			products.PUT("/:id/price",
				authenticate,
				r.authMiddleware.RequireApprovedSeller(),
				r.productController.UpdatePrice,
			)
		}

		categories := v1.Group("/categories")
		{
			categories.GET("", r.categoryController.ListCategories)
			categories.GET("/:slug", r.categoryController.GetCategory)
			categories.GET("/:slug/products", r.categoryController.GetCategoryProducts)
		}
		v1.GET("/subcategories/:slug/products", r.categoryController.GetSubCategoryProducts)
		v1.GET("/deals/:slug", r.productController.GetDeal)

		reviews := v1.Group("/reviews")
		reviews.Use(authenticate)
		{
			reviews.GET("/me", r.reviewController.GetMyReviews)
			reviews.PUT("/:id", r.reviewController.UpdateReview)
			reviews.DELETE("/:id", r.reviewController.DeleteReview)
		}

		// guests and users share the cart routes
		optional := r.authMiddleware.OptionalAuthenticate()
		cart := v1.Group("/cart")
		{
			cart.GET("", optional, r.cartController.GetCart)
			cart.POST("/items", optional, r.cartController.AddToCart)
			cart.DELETE("/items/:product_id", optional, r.cartController.RemoveFromCart)
			cart.DELETE("", authenticate, r.cartController.ClearCart)
			cart.POST("/merge", authenticate, r.cartController.MergeCart)
		}

		orders := v1.Group("/orders")
		orders.Use(authenticate)
		{
			orders.POST("/checkout", r.orderController.Checkout)
			orders.GET("", r.orderController.GetOrders)
			orders.GET("/:id", r.orderController.GetOrderByID)
			orders.PUT("/:id/status",
				r.authMiddleware.RequireFulfillment(),
				r.orderController.UpdateOrderStatus,
			)
		}

		payments := v1.Group("/payments")
		{
			// the gateway calls back without a user token
			payments.GET("/callback", r.paymentController.PaymentCallback)
			payments.POST("/callback", r.paymentController.PaymentNotify)

			payments.POST("/orders/:id", authenticate, r.paymentController.InitiatePayment)
			payments.GET("/orders/:id", authenticate, r.paymentController.GetPayment)
		}

		sellers := v1.Group("/sellers")
		sellers.Use(authenticate)
		{
			sellers.POST("", r.sellerController.CreateProfile)
			sellers.GET("/me", r.sellerController.GetMine)
		}

		admin := v1.Group("/admin")
		admin.Use(authenticate, r.authMiddleware.RequireAdmin())
		{
			admin.GET("/sellers/pending", r.adminController.ListPendingSellers)
			admin.PUT("/sellers/:id/approve", r.adminController.ApproveSeller)
			admin.PUT("/products/:id/approval", r.productController.SetApproval)
			admin.POST("/categories", r.categoryController.CreateCategory)
			admin.POST("/categories/:id/subcategories", r.categoryController.CreateSubCategory)
			admin.GET("/orders/export", r.adminController.ExportOrders)
		}

		notifications := v1.Group("/notifications")
		notifications.Use(authenticate)
		{
			notifications.GET("", r.notificationController.GetNotifications)
			notifications.GET("/unread-count", r.notificationController.GetUnreadCount)
			notifications.PUT("/read-all", r.notificationController.MarkAllAsRead)
			notifications.PUT("/:id/read", r.notificationController.MarkAsRead)
		}

		v1.GET("/ws/notifications", authenticate, r.notificationController.Stream)

		upload := v1.Group("/upload")
		upload.Use(authenticate, r.authMiddleware.RequireApprovedSeller())
		{
			upload.POST("/product-image", r.uploadController.PresignProductImage)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{
			"Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization",
			"accept", "origin", "Cache-Control", "X-Requested-With", middleware.SessionKeyHeader,
		}, ", "))
		c.Writer.Header().Set("Access-Control-Expose-Headers", middleware.SessionKeyHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
