package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"assettracker/drivers/adxl362"
	"assettracker/drivers/gpioirq"
	"assettracker/services/config"
	"assettracker/services/shutdown"
	"assettracker/services/system"
	"assettracker/types"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tracker until shutdown completes",
		RunE:  runTracker,
	}
	cmd.Flags().String("device", "tracker", "Embedded configuration to start from")
	cmd.Flags().String("config", "", "YAML or JSON file overriding the device configuration")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

// loadConfig resolves the embedded configuration and the optional override
// file shared by run and config.
func loadConfig(cmd *cobra.Command) (types.Config, error) {
	device, _ := cmd.Flags().GetString("device")
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(device)
	if err != nil {
		return types.Config{}, err
	}
	if path != "" {
		return config.LoadFile(path, cfg)
	}
	return cfg, nil
}

func runTracker(cmd *cobra.Command, _ []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Error("configuration", zap.Error(err))
		return err
	}

	sim := adxl362.NewSim()
	accel := adxl362.New(sim, noCS{})
	if err := accel.Configure(adxl362.Config{Range: adxl362.Range2G, ODR: adxl362.ODR12_5}); err != nil {
		log.Error("accelerometer", zap.Error(err))
	}

	powered := make(chan shutdown.Report, 1)
	sys, err := system.New(system.Options{
		Config:     cfg,
		Accel:      accel,
		AccelIRQ:   gpioirq.NewSimPin(false),
		RangeMax:   adxl362.Range2G.MaxMS2(),
		TimeoutMax: adxl362.ODR12_5.TimeoutMax(),
		ButtonPins: []gpioirq.IRQPin{gpioirq.NewSimPin(true)},
		PowerOff:   func(r shutdown.Report) { powered <- r },
		Log:        log,
	})
	if err != nil {
		return err
	}

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		srv := &http.Server{Addr: addr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		select {
		case <-sig:
			log.Info("interrupt, requesting shutdown")
			if err := sys.Shutdown(ctx, types.ReasonGeneric); err != nil {
				log.Warn("shutdown request", zap.Error(err))
			}
		case <-ctx.Done():
		}
	}()

	err = sys.Run(ctx)
	select {
	case r := <-powered:
		log.Info("power off",
			zap.Stringer("request_id", r.RequestID),
			zap.Stringer("reason", r.Reason),
			zap.Int("missing", len(r.Missing)))
	default:
	}
	return err
}

type noCS struct{}

func (noCS) High() {}
func (noCS) Low()  {}
