package audio

// DefaultNominalGain and DefaultDuckedGain are the spec §4.2 defaults.
const (
	DefaultNominalGain = 0.30
	DefaultDuckedGain  = 0.08
	DefaultRampMS      = 200
)

// DuckingController holds the current and target ambience gain and
// advances current toward target by at most one step per mixer tick. It
// is owned exclusively by the mixer's callback thread -- duck()/restore()
// are only ever invoked from inside Mixer.Tick, never from another
// goroutine, so no synchronization is needed here.
type DuckingController struct {
	nominal float64
	ducked  float64
	step    float64

	current float64
	target  float64
	ducking bool // true once duck() has been called and restore() has not
}

// NewDuckingController derives step_per_frame from the desired ramp
// duration, sample rate, and block size so the ramp completes in
// approximately rampMS (spec §4.2).
func NewDuckingController(nominal, ducked float64, rampMS, sampleRate, blockSize int) *DuckingController {
	if rampMS <= 0 {
		rampMS = DefaultRampMS
	}
	blocksInRamp := float64(rampMS) * float64(sampleRate) / 1000.0 / float64(blockSize)
	if blocksInRamp < 1 {
		blocksInRamp = 1
	}
	span := nominal - ducked
	if span < 0 {
		span = -span
	}
	return &DuckingController{
		nominal: nominal,
		ducked:  ducked,
		step:    span / blocksInRamp,
		current: nominal,
		target:  nominal,
	}
}

// Duck sets the target to the ducked level. Idempotent while already
// ducking (spec: "duck() is idempotent while TTS is active").
func (d *DuckingController) Duck() {
	if d.ducking {
		return
	}
	d.ducking = true
	d.target = d.ducked
}

// Restore sets the target back to nominal. Only meaningful (and only ever
// called by the mixer) once no TTS buffer remains queued.
func (d *DuckingController) Restore() {
	d.ducking = false
	d.target = d.nominal
}

// IsDucking reports whether duck() has fired without a matching restore().
func (d *DuckingController) IsDucking() bool { return d.ducking }

// Tick advances current by at most one step toward target and returns the
// new current gain. Convergence is monotonic: it never overshoots target.
func (d *DuckingController) Tick() float64 {
	if d.current < d.target {
		d.current += d.step
		if d.current > d.target {
			d.current = d.target
		}
	} else if d.current > d.target {
		d.current -= d.step
		if d.current < d.target {
			d.current = d.target
		}
	}
	return d.current
}

// Current returns the current gain without advancing it.
func (d *DuckingController) Current() float64 { return d.current }

// AtTarget reports whether current has converged to target.
func (d *DuckingController) AtTarget() bool { return d.current == d.target }
