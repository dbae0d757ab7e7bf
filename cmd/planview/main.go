// Command planview rolls a footstep plan through a pattern generator
// offline and renders the resulting CoM and ZMP paths over the footprints
// as a top-down PNG. Used to sanity-check plan files before putting them
// on the robot.
package main

import (
	"flag"
	"image/color"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"capture-walking-core/defs"
	"capture-walking-core/footstep"
	"capture-walking-core/pendulum"
	"capture-walking-core/utils"
	"capture-walking-core/wpg"
)

func main() {
	var (
		plansPath = flag.String("plans", "config/plans.json", "Path to plan-set JSON")
		planName  = flag.String("plan", "walk_forward", "Footstep plan to render")
		strategy  = flag.String("wpg", "hmpc", "Pattern generation: cps|hmpc")
		output    = flag.String("o", "planview.png", "Output PNG path")
		logLevel  = flag.String("log", "info", "trace|debug|info|warn|error|critical")
	)
	flag.Parse()

	log := utils.NewWriterLogger(os.Stderr, utils.ParseLevel(*logLevel))

	set, err := footstep.LoadPlanSet(*plansPath)
	if err != nil {
		log.Critical("%v", err)
		os.Exit(1)
	}
	cfg, ok := set[*planName]
	if !ok {
		log.Critical("plan %q not found in %s", *planName, *plansPath)
		os.Exit(1)
	}
	plan := footstep.NewPlan()
	if err := plan.Load(cfg); err != nil {
		log.Critical("plan %q: %v", *planName, err)
		os.Exit(1)
	}
	plan.Complete(footstep.DefaultSole())

	var gen wpg.PatternGenerator
	switch *strategy {
	case "cps":
		gen = wpg.NewCaptureProblem()
	default:
		gen = wpg.NewHorizontalMPC()
	}

	com, zmp, err := rollout(plan, gen, log)
	if err != nil {
		log.Critical("rollout failed: %v", err)
		os.Exit(1)
	}
	if err := render(plan, com, zmp, *planName, *output); err != nil {
		log.Critical("render failed: %v", err)
		os.Exit(1)
	}
	log.Info("wrote %s (%d samples)", *output, len(com))
}

// rollout walks the whole plan offline: regenerate the preview once per
// sampling period, integrate the pendulum at the control rate, advance the
// cursor at the end of each single support.
func rollout(plan *footstep.Plan, gen wpg.PatternGenerator, log *utils.Logger) (com, zmp plotter.XYs, err error) {
	pend := pendulum.New(plan.ComHeight())
	start := plan.SupportContact().Position()
	pend.Reset(r3.Add(start, r3.Vec{Z: plan.ComHeight()}), start)

	dt := defs.ControlPeriod
	now := 0.
	nextUpdate := 0.
	var preview *wpg.Preview

	runPhase := func(duration float64) error {
		deadline := now + duration
		for now < deadline-1e-9 {
			if now >= nextUpdate-1e-9 {
				p, uerr := gen.Update(wpg.Input{
					Pendulum:              pend,
					Support:               plan.SupportContact(),
					Target:                plan.TargetContact(),
					RemainingPhase:        deadline - now,
					DoubleSupportDuration: plan.DoubleSupportDuration(),
					StartTime:             now,
				})
				if uerr != nil {
					log.Warn("%s update at t=%.2f: %v", gen.Name(), now, uerr)
				} else {
					preview = p
				}
				nextUpdate = now + defs.SamplingPeriod
			}
			if preview == nil {
				return wpg.ErrStalePreview
			}
			if ierr := preview.Integrate(pend, now); ierr != nil {
				return ierr
			}
			c, z := pend.Com(), pend.ZMP()
			com = append(com, plotter.XY{X: c.X, Y: c.Y})
			zmp = append(zmp, plotter.XY{X: z.X, Y: z.Y})
			now += dt
		}
		return nil
	}

	if err = runPhase(plan.InitDSPDuration()); err != nil {
		return nil, nil, err
	}
	// Arm the first step; each landing advance below both commits the
	// landed contact and arms the next swing.
	plan.GoToNextFootstep()
	for plan.SupportContact().ID != plan.TargetContact().ID {
		if err = runPhase(plan.SingleSupportDuration()); err != nil {
			return nil, nil, err
		}
		plan.GoToNextFootstep()
		if plan.SupportContact().ID == plan.TargetContact().ID {
			break
		}
		if err = runPhase(plan.DoubleSupportDuration()); err != nil {
			return nil, nil, err
		}
	}
	err = runPhase(plan.FinalDSPDuration())
	return com, zmp, err
}

// render draws footprints, CoM path and ZMP path into one top-down plot.
func render(plan *footstep.Plan, com, zmp plotter.XYs, title, path string) error {
	p := plot.New()
	p.Title.Text = "Plan view: " + title
	p.X.Label.Text = "x [m]"
	p.Y.Label.Text = "y [m]"

	for _, c := range plan.Contacts() {
		rect, err := plotter.NewLine(footprintOutline(c))
		if err != nil {
			return err
		}
		rect.LineStyle.Width = vg.Points(1.0)
		rect.LineStyle.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}
		p.Add(rect)
	}

	comLine, err := plotter.NewLine(com)
	if err != nil {
		return err
	}
	comLine.LineStyle.Width = vg.Points(2.0)
	comLine.LineStyle.Color = color.RGBA{B: 200, A: 255}
	p.Add(comLine)
	p.Legend.Add("CoM", comLine)

	zmpLine, err := plotter.NewLine(zmp)
	if err != nil {
		return err
	}
	zmpLine.LineStyle.Width = vg.Points(1.5)
	zmpLine.LineStyle.Color = color.RGBA{R: 200, A: 255}
	p.Add(zmpLine)
	p.Legend.Add("ZMP", zmpLine)

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

// footprintOutline traces a contact's support rectangle in world frame,
// closing the loop back to the first corner.
func footprintOutline(c footstep.Contact) plotter.XYs {
	l, w := c.Polygon.HalfLength, c.Polygon.HalfWidth
	corners := []struct{ x, y float64 }{
		{l, w}, {l, -w}, {-l, -w}, {-l, w}, {l, w},
	}
	out := make(plotter.XYs, 0, len(corners))
	for _, k := range corners {
		world := c.Pose.Apply(r3.Vec{X: k.x, Y: k.y})
		out = append(out, plotter.XY{X: world.X, Y: world.Y})
	}
	return out
}
