package footstep

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"capture-walking-core/defs"
	"capture-walking-core/geom"
	"capture-walking-core/utils"
)

// ContactConfig is one contact entry in a plan configuration.
type ContactConfig struct {
	Surface     string          `json:"surface"`
	Position    [3]float64      `json:"xyz"`
	Yaw         float64         `json:"yaw,omitempty"`
	HalfLength  *float64        `json:"half_length,omitempty"`
	HalfWidth   *float64        `json:"half_width,omitempty"`
	Swing       *SwingOverrides `json:"swing,omitempty"`
	SSPDuration *float64        `json:"ssp_duration,omitempty"`
	DSPDuration *float64        `json:"dsp_duration,omitempty"`
}

// PlanConfig is the serialized form of a footstep plan. Gait parameters
// are optional and fall back to plan defaults.
type PlanConfig struct {
	ComHeight             *float64        `json:"comHeight,omitempty"`
	DoubleSupportDuration *float64        `json:"doubleSupportDuration,omitempty"`
	SingleSupportDuration *float64        `json:"singleSupportDuration,omitempty"`
	InitDSPDuration       *float64        `json:"initDSPDuration,omitempty"`
	FinalDSPDuration      *float64        `json:"finalDSPDuration,omitempty"`
	LandingPitch          *float64        `json:"landingPitch,omitempty"`
	LandingRatio          *float64        `json:"landingRatio,omitempty"`
	SwingHeight           *float64        `json:"swingHeight,omitempty"`
	TakeoffOffset         *[3]float64     `json:"takeoffOffset,omitempty"`
	TakeoffPitch          *float64        `json:"takeoffPitch,omitempty"`
	TakeoffRatio          *float64        `json:"takeoffRatio,omitempty"`
	Contacts              []ContactConfig `json:"contacts"`
}

// Load populates the plan from a configuration dictionary. On error the
// plan is left untouched; no partial plan is ever installed.
func (p *Plan) Load(config PlanConfig) error {
	if len(config.Contacts) == 0 {
		return fmt.Errorf("%w: missing contacts", ErrConfig)
	}

	contacts := make([]Contact, 0, len(config.Contacts))
	for i, cc := range config.Contacts {
		foot, err := ParseFoot(cc.Surface)
		if err != nil {
			return fmt.Errorf("contact %d: %w", i, err)
		}
		c := Contact{
			ID:      i,
			Surface: foot,
			Pose: geom.Transform{
				Rotation:    geom.YawRotation(cc.Yaw).Rotation,
				Translation: r3.Vec{X: cc.Position[0], Y: cc.Position[1], Z: cc.Position[2]},
			},
		}
		if cc.HalfLength != nil && cc.HalfWidth != nil {
			c.Polygon = geom.Rect{HalfLength: *cc.HalfLength, HalfWidth: *cc.HalfWidth}
		}
		if cc.Swing != nil {
			c.Swing = *cc.Swing
		}
		if cc.SSPDuration != nil {
			d := utils.Clamp(utils.Quantize(*cc.SSPDuration, defs.SamplingPeriod), 0., 2.)
			c.SingleSupportDuration = &d
		}
		if cc.DSPDuration != nil {
			d := utils.Clamp(utils.Quantize(*cc.DSPDuration, defs.SamplingPeriod), 0., 1.)
			c.DoubleSupportDuration = &d
		}
		contacts = append(contacts, c)
	}

	p.contacts = contacts
	if config.ComHeight != nil {
		p.SetComHeight(*config.ComHeight)
	}
	if config.DoubleSupportDuration != nil {
		p.SetDoubleSupportDuration(*config.DoubleSupportDuration)
	}
	if config.SingleSupportDuration != nil {
		p.SetSingleSupportDuration(*config.SingleSupportDuration)
	}
	if config.InitDSPDuration != nil {
		p.SetInitDSPDuration(*config.InitDSPDuration)
	}
	if config.FinalDSPDuration != nil {
		p.SetFinalDSPDuration(*config.FinalDSPDuration)
	}
	if config.LandingPitch != nil {
		p.SetLandingPitch(*config.LandingPitch)
	}
	if config.LandingRatio != nil {
		p.SetLandingRatio(*config.LandingRatio)
	}
	if config.SwingHeight != nil {
		p.SetSwingHeight(*config.SwingHeight)
	}
	if config.TakeoffOffset != nil {
		p.SetTakeoffOffset(r3.Vec{X: config.TakeoffOffset[0], Y: config.TakeoffOffset[1], Z: config.TakeoffOffset[2]})
	}
	if config.TakeoffPitch != nil {
		p.SetTakeoffPitch(*config.TakeoffPitch)
	}
	if config.TakeoffRatio != nil {
		p.SetTakeoffRatio(*config.TakeoffRatio)
	}
	return p.Reset(0)
}

// Save serializes the plan back to a configuration dictionary.
func (p *Plan) Save() PlanConfig {
	cfg := PlanConfig{
		ComHeight:             ptr(p.comHeight),
		DoubleSupportDuration: ptr(p.doubleSupportDuration),
		SingleSupportDuration: ptr(p.singleSupportDuration),
		InitDSPDuration:       ptr(p.initDSPDuration),
		FinalDSPDuration:      ptr(p.finalDSPDuration),
		LandingPitch:          ptr(p.landingPitch),
		LandingRatio:          ptr(p.landingRatio),
		SwingHeight:           ptr(p.swingHeight),
		TakeoffOffset:         &[3]float64{p.takeoffOffset.X, p.takeoffOffset.Y, p.takeoffOffset.Z},
		TakeoffPitch:          ptr(p.takeoffPitch),
		TakeoffRatio:          ptr(p.takeoffRatio),
	}
	for _, c := range p.contacts {
		cc := ContactConfig{
			Surface:    c.Surface.String(),
			Position:   [3]float64{c.Pose.Translation.X, c.Pose.Translation.Y, c.Pose.Translation.Z},
			Yaw:        c.Pose.Yaw(),
			HalfLength: ptr(c.Polygon.HalfLength),
			HalfWidth:  ptr(c.Polygon.HalfWidth),
		}
		if c.Swing != (SwingOverrides{}) {
			sw := c.Swing
			cc.Swing = &sw
		}
		cc.SSPDuration = c.SingleSupportDuration
		cc.DSPDuration = c.DoubleSupportDuration
		cfg.Contacts = append(cfg.Contacts, cc)
	}
	return cfg
}

func ptr(v float64) *float64 { return &v }

// PlanSet is a dictionary of named plan configurations.
type PlanSet map[string]PlanConfig

// LoadPlanSet reads a plan-set JSON file.
func LoadPlanSet(path string) (PlanSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan set: %w", err)
	}
	var set PlanSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("unmarshal plan set: %w", err)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: plan set is empty", ErrConfig)
	}
	return set, nil
}
