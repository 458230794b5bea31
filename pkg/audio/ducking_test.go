package audio

import "testing"

func TestDuckingConvergesMonotonicallyWithoutOvershoot(t *testing.T) {
	d := NewDuckingController(DefaultNominalGain, DefaultDuckedGain, DefaultRampMS, 22050, 256)
	d.Duck()

	prev := d.Current()
	for i := 0; i < 1000; i++ {
		cur := d.Tick()
		if cur > prev {
			t.Fatalf("gain increased while ducking at step %d: %f -> %f", i, prev, cur)
		}
		if cur < DefaultDuckedGain {
			t.Fatalf("gain overshot ducked target at step %d: %f", i, cur)
		}
		prev = cur
	}
	if !d.AtTarget() {
		t.Fatalf("expected convergence to ducked target, got %f", d.Current())
	}
}

func TestDuckingRampCompletesWithinBudget(t *testing.T) {
	sampleRate, blockSize := 22050, 256
	d := NewDuckingController(DefaultNominalGain, DefaultDuckedGain, DefaultRampMS, sampleRate, blockSize)
	d.Duck()

	blocksPerMS := float64(sampleRate) / 1000.0 / float64(blockSize)
	budgetBlocks := int(float64(DefaultRampMS)*blocksPerMS) + 2 // one block of slack

	for i := 0; i < budgetBlocks; i++ {
		d.Tick()
	}
	if !d.AtTarget() {
		t.Fatalf("expected ducked target reached within %d blocks (~%dms), got gain %f", budgetBlocks, DefaultRampMS, d.Current())
	}
}

func TestRestoreRampsBackToNominal(t *testing.T) {
	d := NewDuckingController(DefaultNominalGain, DefaultDuckedGain, DefaultRampMS, 22050, 256)
	d.Duck()
	for i := 0; i < 1000; i++ {
		d.Tick()
	}
	d.Restore()
	for i := 0; i < 1000; i++ {
		d.Tick()
	}
	if d.Current() != DefaultNominalGain {
		t.Fatalf("expected restore to reach nominal gain, got %f", d.Current())
	}
}

func TestDuckIsIdempotentWhileActive(t *testing.T) {
	d := NewDuckingController(DefaultNominalGain, DefaultDuckedGain, DefaultRampMS, 22050, 256)
	d.Duck()
	target1 := d.target
	d.Duck()
	if d.target != target1 {
		t.Fatalf("expected duck() to be a no-op while already ducking")
	}
}
