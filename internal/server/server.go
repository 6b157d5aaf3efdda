package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	companydomain "github.com/smallbiznis/kanakku/internal/company/domain"
	"github.com/smallbiznis/kanakku/internal/config"
	customerdomain "github.com/smallbiznis/kanakku/internal/customer/domain"
	documentdomain "github.com/smallbiznis/kanakku/internal/document/domain"
	emailqueuedomain "github.com/smallbiznis/kanakku/internal/emailqueue/domain"
	"github.com/smallbiznis/kanakku/internal/observability"
	obsmiddleware "github.com/smallbiznis/kanakku/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/kanakku/internal/observability/metrics"
	obstracing "github.com/smallbiznis/kanakku/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/kanakku/internal/payment/domain"
	productdomain "github.com/smallbiznis/kanakku/internal/product/domain"
	sequencedomain "github.com/smallbiznis/kanakku/internal/sequence/domain"
	taxdomain "github.com/smallbiznis/kanakku/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	taxEngine   taxdomain.Engine
	companySvc  companydomain.Service
	customerSvc customerdomain.Service
	documentSvc documentdomain.Service
	productSvc  productdomain.Service
	paymentSvc  paymentdomain.Service
	sequenceSvc sequencedomain.Service
	emailQueue  emailqueuedomain.Service
	loc         *time.Location
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	TaxEngine   taxdomain.Engine
	CompanySvc  companydomain.Service
	CustomerSvc customerdomain.Service
	DocumentSvc documentdomain.Service
	ProductSvc  productdomain.Service
	PaymentSvc  paymentdomain.Service
	SequenceSvc sequencedomain.Service
	EmailQueue  emailqueuedomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		taxEngine:   p.TaxEngine,
		companySvc:  p.CompanySvc,
		customerSvc: p.CustomerSvc,
		documentSvc: p.DocumentSvc,
		productSvc:  p.ProductSvc,
		paymentSvc:  p.PaymentSvc,
		sequenceSvc: p.SequenceSvc,
		emailQueue:  p.EmailQueue,
		loc:         p.Cfg.Location(),
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Tax reference --------
	api.GET("/tax/rates", s.ListTaxRates)
	api.GET("/tax/states", s.ListStates)
	api.GET("/tax/units", s.ListUnits)
	api.POST("/tax/preview", s.PreviewTax)
	api.GET("/tax/gstin/:gstin", s.LookupGSTIN)

	// -------- Company --------
	api.GET("/company", s.GetCompany)
	api.PUT("/company", s.UpdateCompany)

	// -------- Customers --------
	api.GET("/customers", s.ListCustomers)
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers/:id", s.GetCustomerByID)

	// -------- Products --------
	api.GET("/products", s.ListProducts)
	api.POST("/products", s.CreateProduct)
	api.GET("/products/low-stock", s.LowStockProducts)
	api.GET("/products/barcode/:barcode", s.GetProductByBarcode)
	api.GET("/products/hsn/:hsn", s.ListProductsByHSN)
	api.GET("/products/:id", s.GetProduct)
	api.PATCH("/products/:id", s.UpdateProduct)
	api.DELETE("/products/:id", s.ArchiveProduct)
	api.POST("/products/:id/stock", s.AdjustStock)
	api.GET("/products/:id/stock", s.StockHistory)

	// -------- Documents --------
	api.POST("/invoices", s.CreateInvoice)
	api.POST("/invoices/:id/cancel", s.CancelInvoice)
	api.GET("/invoices/:id/payments", s.ListPayments)
	api.POST("/invoices/:id/payments", s.RecordPayment)
	api.DELETE("/payments/:id", s.DeletePayment)
	api.POST("/quotations", s.CreateQuotation)
	api.POST("/quotations/:id/status", s.UpdateQuotationStatus)
	api.POST("/quotations/:id/convert", s.ConvertQuotation)
	api.POST("/credit-notes", s.CreateCreditNote)
	api.POST("/debit-notes", s.CreateDebitNote)
	api.GET("/documents", s.ListDocuments)
	api.GET("/documents/:id", s.GetDocument)
	api.GET("/documents/:id/pdf", s.DownloadDocumentPDF)
	api.POST("/documents/:id/email", s.EmailDocument)
	api.GET("/sequences/:kind/preview", s.PreviewDocumentNumber)

	// -------- Reports --------
	api.GET("/reports/gst-summary", s.GSTSummary)
	api.GET("/reports/outstanding", s.OutstandingInvoices)
	api.GET("/reports/payments", s.PaymentSummary)

	// -------- Email queue --------
	api.GET("/email-queue", s.ListEmailJobs)
	api.GET("/email-queue/stats", s.EmailQueueStats)
	api.GET("/email-queue/:id", s.GetEmailJob)
	api.POST("/email-queue/:id/retry", s.RetryEmailJob)
	api.DELETE("/email-queue/:id", s.DeleteEmailJob)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
