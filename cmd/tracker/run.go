package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/estimation"
	"github.com/99minutos/courier-tracking/internal/core/session"
	"github.com/99minutos/courier-tracking/internal/infrastructure/sensor"
	"github.com/99minutos/courier-tracking/internal/infrastructure/trackingapi"
	"github.com/99minutos/courier-tracking/pkg/logger"
)

var (
	runDelivery        string
	runDest            string
	runTrack           string
	runInterval        time.Duration
	runLoop            bool
	runDefaultAccuracy float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track a delivery using a replayed GeoJSON track",
	Long: `Run a tracking session for one delivery. Positions come from a GeoJSON track
(LineString, MultiPoint or Point features) replayed at a fixed pace; they are
filtered, reported to the tracking backend and used to estimate the arrival
time at the destination. The session stops on SIGINT/SIGTERM or once the
delivery is DELIVERED or CANCELLED.`,
	Example: `  tracker run --delivery D-1042 --track route.geojson --dest 19.4326,-99.1332
  TRACKING_API_URL=http://localhost:8080 tracker run --delivery D-7 --track loop.geojson --loop`,
	RunE: runTracker,
}

func init() {
	runCmd.Flags().StringVar(&runDelivery, "delivery", "", "Delivery ID to track (required)")
	runCmd.Flags().StringVar(&runTrack, "track", "", "GeoJSON track to replay (required)")
	runCmd.Flags().StringVar(&runDest, "dest", "", "Destination as lat,lng")
	runCmd.Flags().DurationVar(&runInterval, "interval", 2*time.Second, "Delay between replayed readings")
	runCmd.Flags().BoolVar(&runLoop, "loop", false, "Restart the track once exhausted")
	runCmd.Flags().Float64Var(&runDefaultAccuracy, "accuracy", 10, "Accuracy in meters for points without one")
	_ = runCmd.MarkFlagRequired("delivery")
	_ = runCmd.MarkFlagRequired("track")

	rootCmd.AddCommand(runCmd)
}

func runTracker(cmd *cobra.Command, _ []string) error {
	var dest *domain.Coordinates
	if runDest != "" {
		d, err := parseCoordinates(runDest)
		if err != nil {
			return err
		}
		dest = &d
	}

	points, err := sensor.LoadTrack(runTrack, runDefaultAccuracy)
	if err != nil {
		return err
	}
	params, err := cfg.EstimationParams()
	if err != nil {
		return err
	}

	replay := sensor.NewReplay(points, sensor.ReplayConfig{Interval: runInterval, Loop: runLoop})
	api := trackingapi.NewClient(cfg.TrackingAPIClient())
	s := session.New(
		cfg.SessionConfig(),
		replay,
		api,
		estimation.New(params),
		newConsoleListener(os.Stdout),
		logger.Component("session"),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSrv := startMetricsServer(cfg.MetricsAddr)
	defer shutdownMetricsServer(metricsSrv)

	log.Info().
		Str("version", version).
		Str("delivery_id", runDelivery).
		Str("track", runTrack).
		Int("points", len(points)).
		Str("api", cfg.TrackingAPI.BaseURL).
		Msg("starting tracking session")

	if err := s.Start(ctx, runDelivery, dest); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	select {
	case <-s.Done():
		log.Info().Str("delivery_id", runDelivery).Msg("tracking session ended")
	case <-ctx.Done():
		// The host is going away: never leave the sensor subscription or
		// the tickers running behind it.
		if s.Active() {
			if snap, err := s.Snapshot(); err == nil {
				log.Warn().
					Str("delivery_id", snap.DeliveryID).
					Str("session_id", snap.SessionID).
					Str("state", snap.State.String()).
					Int("history", snap.HistoryLen).
					Msg("shutting down with an active tracking session, stopping it")
			}
		}
		s.Stop()
	}
	return nil
}

// parseCoordinates parses "lat,lng".
func parseCoordinates(s string) (domain.Coordinates, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return domain.Coordinates{}, fmt.Errorf("invalid coordinates %q: want lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("invalid latitude %q: %w", parts[0], err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("invalid longitude %q: %w", parts[1], err)
	}
	c := domain.Coordinates{Lat: lat, Lng: lng}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return domain.Coordinates{}, fmt.Errorf("coordinates %q out of range", s)
	}
	return c, nil
}

// startMetricsServer exposes the default registry on addr. An empty addr
// disables it.
func startMetricsServer(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics server started")
	return srv
}

func shutdownMetricsServer(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
