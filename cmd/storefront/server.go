package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	_ "github.com/MikeMC777/storefront-ecom/docs"
	"github.com/MikeMC777/storefront-ecom/internal/cart"
	"github.com/MikeMC777/storefront-ecom/internal/config"
	"github.com/MikeMC777/storefront-ecom/internal/db"
	"github.com/MikeMC777/storefront-ecom/internal/httpx"
	"github.com/MikeMC777/storefront-ecom/internal/identity"
	"github.com/MikeMC777/storefront-ecom/internal/order"
	"github.com/MikeMC777/storefront-ecom/internal/product"
	"github.com/MikeMC777/storefront-ecom/internal/seed"
	"github.com/MikeMC777/storefront-ecom/internal/session"
	"github.com/MikeMC777/storefront-ecom/internal/user"
)

// stores is the persistence the API runs on.
type stores struct {
	products product.Repository
	users    user.Repository
	carts    cart.Repository
	orders   order.Repository
}

type app struct {
	products product.Repository
	users    *user.Service
	carts    *cart.Service
	orders   *order.Service
	ids      *identity.Resolver
}

func newApp(st stores, sess session.Config, log *zap.Logger) (*app, error) {
	sessions, err := session.NewManager(sess)
	if err != nil {
		return nil, err
	}
	cookies, err := session.NewCartCookie(sess)
	if err != nil {
		return nil, err
	}
	users := user.NewService(st.users, log)
	carts := cart.NewService(st.carts, st.products, log)
	return &app{
		products: st.products,
		users:    users,
		carts:    carts,
		orders:   order.NewService(st.orders, st.carts, log),
		ids:      identity.NewResolver(users, carts, sessions, cookies, log),
	}, nil
}

func newRouter(a *app, log *zap.Logger, origins []string) *gin.Engine {
	r := gin.New()
	r.Use(httpx.RequestID(), httpx.Logger(log), httpx.Recovery())
	if len(origins) > 0 {
		r.Use(corsMiddleware(origins))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")

	api.GET("/products", listProductsHandler(a.products))
	api.GET("/products/:slug", getProductHandler(a.products))

	api.POST("/auth/register", registerHandler(a.users, a.ids))
	api.POST("/auth/login", loginHandler(a.users, a.ids))
	api.POST("/auth/logout", logoutHandler(a.ids))
	api.GET("/auth/me", meHandler(a.ids))

	api.GET("/cart", getCartHandler(a.carts, a.ids))
	api.POST("/cart/items", addCartItemHandler(a.carts, a.ids))
	api.PATCH("/cart/items/:id", updateCartItemHandler(a.carts, a.ids))
	api.DELETE("/cart/items/:id", removeCartItemHandler(a.carts, a.ids))
	api.POST("/cart/clear", clearCartHandler(a.carts, a.ids))

	api.POST("/orders", createOrderHandler(a.orders, a.carts, a.ids))
	api.GET("/orders", listOrdersHandler(a.orders, a.ids))
	api.GET("/orders/:id", getOrderHandler(a.orders, a.ids))
	api.POST("/orders/:id/cancel", cancelOrderHandler(a.orders, a.ids))

	api.POST("/users", createUserHandler(a.users, a.ids))
	api.GET("/users", listUsersHandler(a.users, a.ids))
	api.DELETE("/users/:id", deleteUserHandler(a.users, a.ids))
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			// any origin, echoed back so cookies still work
			cfg.AllowOriginFunc = func(string) bool { return true }
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = origins
	return cors.New(cfg)
}

// newHealthServer registers the standard gRPC health service, starting in
// NOT_SERVING until the caller flips it.
func newHealthServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return srv, hs
}

func runServe(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	grpcSrv, hs := newHealthServer()
	lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
	if err != nil {
		return err
	}
	go func() {
		log.Info("grpc health listening", zap.String("addr", cfg.GRPCHealthAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error("grpc health stopped", zap.Error(err))
		}
	}()
	defer grpcSrv.GracefulStop()

	pool, err := db.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if !skipMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
	}
	st := stores{
		products: product.NewPGRepo(pool),
		users:    user.NewPGRepo(pool),
		carts:    cart.NewPGRepo(pool),
		orders:   order.NewPGRepo(pool),
	}
	a, err := newApp(st, session.Config{Secret: cfg.SessionSecret, Secure: cfg.CookieSecure}, log)
	if err != nil {
		return err
	}
	if !skipSeed {
		seed.Run(ctx, st.products, a.users, cfg.AdminPassword, log)
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(a, log, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("storefront listening", zap.String("addr", cfg.HTTPAddr))
		errc <- srv.ListenAndServe()
	}()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	hs.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
