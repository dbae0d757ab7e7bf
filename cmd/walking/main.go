// Command walking runs the balance core in a timer-driven loop with a
// minimal phase driver standing in for the gait state machine, publishing
// telemetry on the side. It is the dry-run harness used on the bench; on
// the robot the control cycle is invoked by the whole-body scheduler.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"capture-walking-core/controller"
	"capture-walking-core/defs"
	"capture-walking-core/footstep"
	"capture-walking-core/sensors"
	"capture-walking-core/telemetry"
	"capture-walking-core/utils"
)

func main() {
	var (
		iface     = flag.String("iface", "", "SocketCAN interface name (empty: no bus)")
		plansPath = flag.String("plans", "config/plans.json", "Path to plan-set JSON")
		planName  = flag.String("plan", "walk_forward", "Footstep plan to load")
		strategy  = flag.String("wpg", "cps", "Pattern generation: cps|hmpc")
		mass      = flag.Float64("mass", 38.0, "Robot mass [kg]")
		duration  = flag.Float64("duration", 30.0, "Run duration [s]")
		dbPath    = flag.String("db", "", "Telemetry sqlite path (empty: no recording)")
		logLevel  = flag.String("log", "info", "trace|debug|info|warn|error|critical")
	)
	flag.Parse()

	log, err := utils.NewFileLogger("walking.log", utils.ParseLevel(*logLevel), true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open walking.log: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	plans, err := footstep.LoadPlanSet(*plansPath)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		os.Exit(1)
	}

	ft := &sensors.ForceSensorSet{}
	if *iface != "" {
		rx, err := sensors.NewReceiver(ctx, *iface)
		if err != nil {
			log.Critical("Startup failed: %v", err)
			os.Exit(1)
		}
		defer rx.Close()
		go func() {
			if err := rx.Run(ctx, ft, log); err != nil && ctx.Err() == nil {
				log.Error("force-sensor RX: %v", err)
			}
		}()
	}

	obs := &echoObserver{}
	ctrl := controller.New(controller.Config{Mass: *mass}, plans, obs, ft, log)
	obs.ctrl = ctrl
	if err := ctrl.LoadFootstepPlan(*planName); err != nil {
		log.Critical("Startup failed: %v", err)
		os.Exit(1)
	}
	ctrl.SetStrategy(controller.Strategy(*strategy))

	var store *telemetry.Store
	if *dbPath != "" {
		store, err = telemetry.OpenStore(*dbPath)
		if err != nil {
			log.Critical("Startup failed: %v", err)
			os.Exit(1)
		}
		defer store.Close()
	}
	var writer telemetry.CANWriter
	if *iface != "" {
		writer, err = telemetry.NewSocketCANWriter(ctx, *iface)
		if err != nil {
			log.Critical("Startup failed: %v", err)
			os.Exit(1)
		}
		defer writer.Close()
	}
	if writer != nil || store != nil {
		pub := telemetry.NewPublisher(ctrl, writer, store, 100*time.Millisecond, log)
		go func() {
			_ = pub.Run(ctx)
		}()
	}

	if err := run(ctx, ctrl, *duration, log); err != nil {
		log.Critical("Run failed: %v", err)
		os.Exit(1)
	}
}

// echoObserver feeds the reference CoM back as the observed CoM; the dry
// run has no exteroception, so the observers are ideal.
type echoObserver struct {
	ctrl *controller.Controller
}

func (o *echoObserver) Observe() (controller.Observation, error) {
	if o.ctrl == nil {
		return controller.Observation{}, nil
	}
	snap := o.ctrl.Snapshot()
	return controller.Observation{Com: snap.Com}, nil
}

// run drives the control cycle and a two-phase walk driver (DSP/SSP) off
// one ticker until the plan finishes or the duration elapses.
func run(ctx context.Context, ctrl *controller.Controller, duration float64, log *utils.Logger) error {
	period := time.Duration(defs.ControlPeriod * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	ctrl.StartLogSegment("walk")
	defer ctrl.StopLogSegment()

	start := time.Now()
	inSSP := false
	armed := false
	finishing := false
	var badCycles uint
	for {
		select {
		case <-ctx.Done():
			log.Warn("Context canceled; stopping walk")
			return ctx.Err()
		case <-ticker.C:
			if time.Since(start).Seconds() > duration {
				log.Info("Walk finished: duration elapsed (bad cycles: %d)", badCycles)
				return nil
			}
			if !ctrl.Run() {
				badCycles++
			}
			if ctrl.RemainingPhaseTime() > 0 {
				continue
			}
			switch {
			case finishing:
				log.Info("Walk finished: plan exhausted (bad cycles: %d)", badCycles)
				return nil
			case !armed:
				// Initial double support done; arm the first step. Each
				// landing advance below both commits the landed contact
				// and arms the next swing.
				ctrl.GoToNextFootstep()
				armed = true
				inSSP = true
				ctrl.StartPhase(ctrl.SingleSupportDuration())
			case inSSP:
				ctrl.GoToNextFootstep()
				inSSP = false
				// Cursor fully caught up: no swing left, close with the
				// final double support.
				if ctrl.SupportContact().ID == ctrl.TargetContact().ID {
					finishing = true
					ctrl.StartPhase(ctrl.FinalDSPDuration())
				} else {
					ctrl.StartPhase(ctrl.DoubleSupportDuration())
				}
			default:
				inSSP = true
				ctrl.StartPhase(ctrl.SingleSupportDuration())
			}
		}
	}
}
