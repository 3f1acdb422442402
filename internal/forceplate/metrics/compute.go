package metrics

import (
	"math"

	"github.com/banshee-data/forceplate.report/internal/forceplate/baseline"
	"github.com/banshee-data/forceplate.report/internal/forceplate/classify"
	"github.com/banshee-data/forceplate.report/internal/forceplate/phase"
	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
	"github.com/banshee-data/forceplate.report/internal/units"
)

// Input is everything Compute needs for one trial.
type Input struct {
	Trial       *samples.Trial
	BodyWeightN float64
	Test        classify.TestType
	Segments    []phase.PhaseSegment
}

// Compute derives every metric that applies to the trial. Each metric is
// computed independently: a failed precondition is recorded in
// Unavailable and does not stop the others.
func Compute(in Input) MetricSet {
	ms := NewMetricSet()
	if in.Trial == nil || in.Trial.Len() < 2 {
		ms.fail(PeakForce, "trial has fewer than 2 samples")
		return ms
	}
	ss := in.Trial.Samples()
	forces := samples.Totals(ss)
	rate := in.Trial.SampleRate
	bw := in.BodyWeightN
	if err := checkInputs(forces, bw, rate); err != nil {
		ms.record(PeakForce, 0, err)
		return ms
	}

	takeoff, hasTakeoff := TakeoffIndex(forces, bw)
	landing, hasLanding := 0, false
	if hasTakeoff {
		landing, hasLanding = LandingIndex(forces, bw, takeoff)
	}
	preTakeoff := forces
	if hasTakeoff {
		preTakeoff = forces[:takeoff+1]
	}
	noTakeoff := notComputable("no takeoff detected")
	startsAirborne := in.Test == classify.DJ || forces[0] < TakeoffLevel*bw

	peak := preTakeoff[0]
	for _, f := range preTakeoff {
		peak = math.Max(peak, f)
	}
	ms.record(PeakForce, peak, nil)
	ms.record(RelativePeakForce, peak/bw, nil)
	ms.record(TotalImpulse, Impulse(forces, rate), nil)
	ms.record(NetImpulseToTakeoff, NetImpulse(preTakeoff, bw, rate), nil)
	ms.set(PeakRFD50)(PeakRFD(preTakeoff, rate, 50))

	// Flight-time height is valid whenever both ends of the flight exist.
	var flightMs float64
	if hasTakeoff && hasLanding {
		flightMs = float64(landing-takeoff) / rate * 1000
		ms.record(FlightTime, flightMs, nil)
		ms.record(JumpHeightFlight, JumpHeightFlightTime(flightMs), nil)
	} else {
		ms.record(FlightTime, 0, notComputable("no complete flight"))
		ms.record(JumpHeightFlight, 0, notComputable("no complete flight"))
	}

	// Integrating from rest requires the trial to start standing on the plate.
	var height float64
	var heightErr error
	switch {
	case !hasTakeoff:
		heightErr = noTakeoff
	case startsAirborne:
		if hasLanding {
			height = JumpHeightFlightTime(flightMs)
		} else {
			heightErr = notComputable("trial starts airborne and has no complete flight")
		}
	default:
		height, heightErr = JumpHeightImpulse(forces, bw, rate, takeoff)
		v, err := TakeoffVelocity(forces, bw, rate, takeoff)
		ms.record(TakeoffVelocityMS, math.Max(0, v), err)
	}
	ms.record(JumpHeight, height, heightErr)
	if startsAirborne || !hasTakeoff {
		ms.record(TakeoffVelocityMS, 0, notComputable("velocity from rest needs a loaded start and a takeoff"))
	}

	switch {
	case in.Test == classify.IMTP:
		ms.failPower("isometric test has no centre-of-mass velocity")
	case !hasTakeoff:
		ms.failPower("no takeoff detected")
	case startsAirborne:
		ms.failPower("velocity from rest needs a loaded start")
	default:
		peak, mean, err := Power(preTakeoff, bw, rate)
		ms.record(PeakPower, peak, err)
		ms.record(MeanPower, mean, err)
		ms.record(RelativePeakPower, peak/units.MassKg(bw), err)
	}

	if in.Test == classify.DJ {
		if hasTakeoff {
			ct, err := ContactTimeMs(forces, bw, rate, takeoff)
			ms.record(ContactTime, ct, err)
			if err == nil && heightErr == nil {
				ms.set(ReactiveStrength)(RSI(height, ct))
			} else {
				ms.record(ReactiveStrength, 0, notComputable("needs contact time and jump height"))
			}
		} else {
			ms.record(ContactTime, 0, noTakeoff)
			ms.record(ReactiveStrength, 0, noTakeoff)
		}
	} else {
		ms.fail(ReactiveStrength, "reactive strength index applies to drop jumps only")
	}

	onset, hasOnset := onsetIndex(ss, bw)
	if hasTakeoff && hasOnset && onset < takeoff && !startsAirborne {
		ttt := float64(takeoff-onset) / rate * 1000
		ms.record(TimeToTakeoff, ttt, nil)
		if heightErr == nil {
			ms.record(ReactiveStrengthMod, (height/100)/(ttt/1000), nil)
		}
	} else {
		ms.fail(TimeToTakeoff, "needs a movement onset before takeoff")
		ms.fail(ReactiveStrengthMod, "needs a movement onset before takeoff")
	}

	if in.Test == classify.IMTP {
		for _, w := range StandardRFDWindows {
			if !hasOnset {
				ms.fail(w.Name, "no movement onset")
				continue
			}
			ms.set(w.Name)(WindowRFD(forces, rate, onset, w))
		}
	}

	if hasLanding {
		lp := landing
		for i := landing; i < len(forces); i++ {
			if forces[i] > forces[lp] {
				lp = i
			}
		}
		ms.record(LandingPeakForce, forces[lp], nil)
		if lp > landing {
			ms.record(LandingRFD, (forces[lp]-forces[landing])/(float64(lp-landing)/rate), nil)
		} else {
			ms.fail(LandingRFD, "landing peak at first contact")
		}
	} else {
		ms.fail(LandingPeakForce, "no landing")
		ms.fail(LandingRFD, "no landing")
	}

	ms.set(AsymmetryMean)(MeanAsymmetry(ss, TakeoffLevel*bw))
	ms.set(AsymmetryPeakForce)(PeakForceAsymmetry(ss))
	ms.set(AsymmetryImpulse)(ImpulseAsymmetry(ss, rate))

	if cop, err := COP(ss, rate); err != nil {
		for _, n := range []string{COPRangeML, COPRangeAP, COPPathLength, COPVelocity, COPVelocityML, COPVelocityAP, COPArea} {
			ms.record(n, 0, err)
		}
	} else {
		ms.record(COPRangeML, cop.RangeML, nil)
		ms.record(COPRangeAP, cop.RangeAP, nil)
		ms.record(COPPathLength, cop.PathLength, nil)
		ms.record(COPVelocity, cop.Velocity, nil)
		ms.record(COPVelocityML, cop.VelocityML, nil)
		ms.record(COPVelocityAP, cop.VelocityAP, nil)
		ms.record(COPArea, cop.Area, nil)
	}

	ms.recordPhases(in.Segments)
	return ms
}

func (m MetricSet) failPower(reason string) {
	for _, n := range []string{PeakPower, MeanPower, RelativePeakPower} {
		m.fail(n, reason)
	}
}

func (m MetricSet) recordPhases(segs []phase.PhaseSegment) {
	if len(segs) == 0 {
		m.fail(EccentricDuration, "no phase segments")
		m.fail(ConcentricDuration, "no phase segments")
		return
	}
	for _, p := range phase.All() {
		if d := phase.TotalDurationMs(segs, p); d > 0 {
			m.record(PhaseDuration(string(p)), d, nil)
		}
	}
	if _, ok := phase.Find(segs, phase.Braking); ok {
		m.record(EccentricDuration, phase.TotalDurationMs(segs, phase.Unloading)+phase.TotalDurationMs(segs, phase.Braking), nil)
	} else {
		m.fail(EccentricDuration, "no braking phase")
	}
	if _, ok := phase.Find(segs, phase.Propulsion); ok {
		m.record(ConcentricDuration, phase.TotalDurationMs(segs, phase.Propulsion), nil)
	} else {
		m.fail(ConcentricDuration, "no propulsion phase")
	}
}

// onsetIndex runs the debounced onset detector over ss and maps the onset
// timestamp back to a sample index.
func onsetIndex(ss []samples.ForceSample, bw float64) (int, bool) {
	det := baseline.NewOnsetDetector(baseline.DefaultConfig(), bw)
	for _, s := range ss {
		if det.Update(s) {
			break
		}
	}
	at, ok := det.Onset()
	if !ok {
		return 0, false
	}
	for i, s := range ss {
		if s.TimestampMs >= at {
			return i, true
		}
	}
	return 0, false
}
