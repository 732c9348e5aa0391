package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avolkoff/tourbooking/api"
	"github.com/avolkoff/tourbooking/config"
	"github.com/avolkoff/tourbooking/internal/repository"
	"github.com/avolkoff/tourbooking/internal/service/assignment"
	"github.com/avolkoff/tourbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run starts the HTTP server and blocks until the context is canceled or
// the server fails.
func Run(ctx context.Context, cfg *config.Config, assignmentSvc assignment.AssignmentUseCase, bookingSvc booking.BookingUseCase, guideRepo repository.GuideRepository) error {
	router := newRouter(assignmentSvc, bookingSvc, guideRepo)

	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newRouter(assignmentSvc assignment.AssignmentUseCase, bookingSvc booking.BookingUseCase, guideRepo repository.GuideRepository) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), api.ActorFromHeaders())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	bookings := api.NewBookingHandler(bookingSvc)
	bookings.Register(router.Group("/api/bookings"))

	guides := api.NewGuideHandler(assignmentSvc, guideRepo)
	guides.Register(router.Group("/api/guides"))

	return router
}
