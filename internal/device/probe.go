package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/lednet/internal/capability"
	"github.com/srg/lednet/internal/protocol"
)

// probeLevel is the mid-range test value written to one channel at a time.
const probeLevel uint8 = 0x32

// ProbeResult is the outcome of a capability probe.
type ProbeResult struct {
	ProductID uint8
	HasRGB    bool
	HasWW     bool
	HasCW     bool
	// Fallback is set when the device stopped answering and every channel
	// was assumed present.
	Fallback bool
	Overlay  capability.Overlay
	// Capabilities are the merged capabilities after the probe.
	Capabilities capability.ProductCapabilities
}

type channelTest struct {
	name    string
	command protocol.LevelsIntent
	read    func(d protocol.DecodedState) uint8
}

var channelTests = []channelTest{
	{
		name:    "rgb",
		command: protocol.LevelsIntent{R: probeLevel},
		read:    func(d protocol.DecodedState) uint8 { return d.R },
	},
	{
		name:    "ww",
		command: protocol.LevelsIntent{WW: probeLevel},
		read:    func(d protocol.DecodedState) uint8 { return d.WW },
	},
	{
		name:    "cw",
		command: protocol.LevelsIntent{CW: probeLevel},
		read:    func(d protocol.DecodedState) uint8 { return d.CW },
	},
}

// errNoResponse marks a probe step that got no answer at all.
var errNoResponse = errors.New("no response")

// ProbeIfNeeded probes only products the capability table cannot describe
// and that have no overlay yet. ok is false when no probe ran.
func (d *Device) ProbeIfNeeded(ctx context.Context) (result ProbeResult, ok bool, err error) {
	if err := d.ensureIdentified(ctx); err != nil {
		return ProbeResult{}, false, err
	}
	caps := d.Capabilities()
	if !caps.NeedsProbing || caps.Probed {
		return ProbeResult{}, false, nil
	}
	result, err = d.Probe(ctx)
	return result, err == nil, err
}

// Probe detects which channels the lamp drives: it records the baseline,
// lights red, warm white and cool white alone in turn, re-reads the state
// after each and finally restores the baseline. A channel is present when
// the reported level is within tolerance of the test level.
//
// If any step gets no response the probe assumes every channel is present.
// A response that does not confirm a channel is taken at face value.
func (d *Device) Probe(ctx context.Context) (ProbeResult, error) {
	if err := d.call(ctx, d.enterProbe); err != nil {
		return ProbeResult{}, err
	}
	defer func() {
		_ = d.enqueue(context.Background(), func() {
			d.probing = false
			d.publishSnapshot()
		})
	}()

	log := d.logger.WithField("address", d.address)
	log.Info("Probing capabilities")

	baseline, err := d.probeQuery(ctx)
	if err != nil {
		if errors.Is(err, errNoResponse) {
			return d.finishProbe(ctx, capability.ChannelOverlay(true, true, true), true, nil)
		}
		return ProbeResult{}, err
	}
	if !baseline.raw.HasProduct {
		return ProbeResult{}, fmt.Errorf("probe %s: product not reported", d.address)
	}

	present := make(map[string]bool, len(channelTests))
	fallback := false
	for _, test := range channelTests {
		ok, err := d.probeChannel(ctx, test)
		if errors.Is(err, errNoResponse) {
			log.WithField("channel", test.name).Warn("Probe step unanswered, assuming full capability")
			fallback = true
			break
		}
		if err != nil {
			d.restoreBaseline(ctx, baseline.raw)
			return ProbeResult{}, err
		}
		present[test.name] = ok
	}

	d.restoreBaseline(ctx, baseline.raw)

	overlay := capability.ChannelOverlay(present["rgb"], present["ww"], present["cw"])
	if fallback {
		overlay = capability.ChannelOverlay(true, true, true)
	}
	return d.finishProbe(ctx, overlay, fallback, &baseline.raw)
}

func (d *Device) enterProbe() error {
	if d.probing {
		return ErrProbing
	}
	if d.stateWaiter != nil || d.ledWaiter != nil {
		return ErrQueryPending
	}
	d.probing = true
	d.publishSnapshot()
	return nil
}

// probeQuery folds timeouts and transport failures into errNoResponse.
func (d *Device) probeQuery(ctx context.Context) (stateReply, error) {
	reply, err := d.queryState(ctx, d.opts.ProbeQueryTimeout, SourceProbe)
	if err == nil {
		return reply, nil
	}
	if ctx.Err() != nil {
		return stateReply{}, ctx.Err()
	}
	var unsupported *protocol.UnsupportedError
	if errors.As(err, &unsupported) || errors.Is(err, ErrClosed) {
		return stateReply{}, err
	}
	d.logger.WithError(err).WithField("address", d.address).Debug("Probe query failed")
	return stateReply{}, fmt.Errorf("%w: %v", errNoResponse, err)
}

func (d *Device) probeChannel(ctx context.Context, test channelTest) (bool, error) {
	err := d.call(ctx, func() error { return d.sendLocked(ctx, test.command, SourceProbe) })
	if err != nil {
		var unsupported *protocol.UnsupportedError
		if errors.As(err, &unsupported) || errors.Is(err, ErrClosed) || ctx.Err() != nil {
			return false, err
		}
		return false, fmt.Errorf("%w: %v", errNoResponse, err)
	}

	if err := sleepCtx(ctx, d.opts.ProbeSettleDelay); err != nil {
		return false, err
	}

	reply, err := d.probeQuery(ctx)
	if err != nil {
		return false, err
	}

	got := int(test.read(reply.raw))
	diff := got - int(probeLevel)
	if diff < 0 {
		diff = -diff
	}
	confirmed := diff <= d.opts.ProbeTolerance
	d.logger.WithFields(logrus.Fields{
		"address":   d.address,
		"channel":   test.name,
		"reported":  got,
		"confirmed": confirmed,
	}).Debug("Probe step")
	return confirmed, nil
}

// restoreBaseline writes back the pre-probe channel levels and power.
func (d *Device) restoreBaseline(ctx context.Context, raw protocol.DecodedState) {
	restore := protocol.LevelsIntent{R: raw.R, G: raw.G, B: raw.B, WW: raw.WW, CW: raw.CW}
	err := d.call(ctx, func() error {
		if err := d.sendLocked(ctx, restore, SourceProbe); err != nil {
			return err
		}
		if raw.Power == protocol.PowerOff {
			return d.sendLocked(ctx, protocol.PowerIntent{On: false}, SourceProbe)
		}
		return nil
	})
	if err != nil {
		d.logger.WithError(err).WithField("address", d.address).Warn("Failed to restore pre-probe state")
	}
}

func (d *Device) finishProbe(ctx context.Context, overlay capability.Overlay, fallback bool, baseline *protocol.DecodedState) (ProbeResult, error) {
	var result ProbeResult
	err := d.call(ctx, func() error {
		if !d.state.ProductKnown {
			return fmt.Errorf("probe %s: product not reported", d.address)
		}
		pid := d.state.ProductID
		caps := d.db.MergeProbed(pid, overlay)

		d.probing = false
		before := d.state.Clone()
		if baseline != nil {
			// The restore write updated the state optimistically from raw
			// levels; the baseline response is the better record.
			d.state.Merge(baseline, caps)
		}
		d.commit(SourceProbe, changedFields(before, d.state))

		result = ProbeResult{
			ProductID:    pid,
			HasRGB:       caps.HasRGB,
			HasWW:        caps.HasWW,
			HasCW:        caps.HasCW,
			Fallback:     fallback,
			Overlay:      overlay,
			Capabilities: caps,
		}
		return nil
	})
	if err != nil {
		return ProbeResult{}, err
	}

	entry := d.logger.WithFields(logrus.Fields{
		"address":    d.address,
		"product_id": fmt.Sprintf("0x%02X", result.ProductID),
		"rgb":        result.HasRGB,
		"ww":         result.HasWW,
		"cw":         result.HasCW,
	})
	if fallback {
		entry.Warn("Probe incomplete, assuming full capability")
	} else {
		entry.Info("Probe complete")
	}
	return result, nil
}

func sleepCtx(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
