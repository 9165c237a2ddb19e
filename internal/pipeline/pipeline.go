// Package pipeline composes the normalizer, filter ensemble, and
// classifier into the two driver operations: field-type classification of
// a trace, and the OpenVPN opcode/ack fingerprint checks.
package pipeline

import (
	"fmt"
	"log"
	"time"

	"github.com/googlesky/vpnspotter/internal/capture"
	"github.com/googlesky/vpnspotter/internal/classifier"
	"github.com/googlesky/vpnspotter/internal/clock"
	"github.com/googlesky/vpnspotter/internal/filterensemble"
	"github.com/googlesky/vpnspotter/internal/inspector"
	"github.com/googlesky/vpnspotter/internal/model"
	"github.com/googlesky/vpnspotter/internal/normalizer"
	"github.com/googlesky/vpnspotter/internal/openvpnfp"
	"github.com/googlesky/vpnspotter/internal/pcapfile"
	"github.com/googlesky/vpnspotter/internal/vpnfields"
)

// Config holds every CLI-tunable knob for a classification run. The CLI
// driver owns flag parsing and argument validation (ErrInvalidArgument);
// by the time a Config reaches RunClassification every field is already
// well-formed.
type Config struct {
	InputPath string
	SkipCheck bool

	// LinkOverride, when non-nil, is used as the frame link type whenever
	// the trace's own pcap global header doesn't name one this reader
	// recognizes, instead of always defaulting to LinkRaw. Set this from a
	// live interface's resolved link type when the caller has one.
	LinkOverride *model.LinkType

	NbPacket int // target usable packets per direction
	NbByte   int // payload byte-columns to classify

	LatencyEnabled bool
	ZeroEnabled    bool
	LengthEnabled  bool
	NbFilterNeeded int

	LatencyPercentage float64
	ZeroThreshold     int
}

// sendProgress is a no-op when ch is nil, so callers that don't want the
// live inspector attached never pay for it.
func sendProgress(ch chan<- inspector.ProgressMsg, msg inspector.ProgressMsg) {
	if ch == nil {
		return
	}
	ch <- msg
}

// RunClassification ingests the trace at cfg.InputPath and returns the
// per-column field classification for whichever direction the filter
// ensemble selects. progress, if non-nil, is closed when the run finishes
// (success or failure) so an attached inspector.Model sees the channel
// close and exits its event loop.
func RunClassification(cfg Config, progress chan<- inspector.ProgressMsg) (*model.ClassificationResult, error) {
	if progress != nil {
		defer close(progress)
	}

	fallback := model.LinkRaw
	if cfg.LinkOverride != nil {
		fallback = *cfg.LinkOverride
	}
	src, err := pcapfile.OpenWithFallback(cfg.InputPath, fallback)
	if err != nil {
		return nil, wrap(ErrTraceOpen, "open trace", err)
	}
	defer src.Close()

	result, err := classifyFromSource(cfg, src, progress)
	if err != nil {
		sendProgress(progress, inspector.ProgressMsg{Phase: inspector.PhaseDone, Err: err})
	}
	return result, err
}

func classifyFromSource(cfg Config, src capture.FrameSource, progress chan<- inspector.ProgressMsg) (*model.ClassificationResult, error) {
	var clk clock.Reader
	clk.Now() // baseline reading; clk.Elapsed() after this reports time spent normalizing

	sendProgress(progress, inspector.ProgressMsg{Phase: inspector.PhaseNormalizing})

	norm, err := normalizer.Build(src, cfg.NbByte, 0)
	if err != nil {
		return nil, wrap(ErrTraceOpen, "normalize trace", err)
	}
	clk.Now()
	log.Printf("pipeline: normalize phase took %s", time.Duration(clk.Elapsed()))

	if !cfg.SkipCheck && norm.EndpointPairs > 1 {
		return nil, wrap(ErrPrecondition, "endpoint check",
			fmt.Errorf("trace has %d distinct {src,dst} endpoint pairs, want exactly 1", norm.EndpointPairs))
	}
	if len(norm.Records) < cfg.NbPacket {
		return nil, wrap(ErrPrecondition, "packet count check",
			fmt.Errorf("trace has %d payload-carrying packets, need at least %d", len(norm.Records), cfg.NbPacket))
	}

	sendProgress(progress, inspector.ProgressMsg{
		Phase:         inspector.PhaseFiltering,
		FramesScanned: norm.FramesScanned,
		RecordsBuilt:  len(norm.Records),
		CountAToB:     norm.CountAToB,
		CountBToA:     norm.CountBToA,
	})

	filterCfg := filterensemble.Config{
		LatencyEnabled:    cfg.LatencyEnabled,
		ZeroEnabled:       cfg.ZeroEnabled,
		LengthEnabled:     cfg.LengthEnabled,
		NbFilterNeeded:    cfg.NbFilterNeeded,
		LatencyPercentage: cfg.LatencyPercentage,
		ZeroThreshold:     cfg.ZeroThreshold,
	}

	totalDir, err := filterensemble.Apply(norm.Records, cfg.NbByte, cfg.NbPacket, filterCfg)
	if err != nil {
		return nil, wrap(ErrInsufficientPackets, "filter ensemble", err)
	}
	clk.Now()
	log.Printf("pipeline: filter phase took %s", time.Duration(clk.Elapsed()))

	transport := norm.Records[0].Transport

	sendProgress(progress, inspector.ProgressMsg{
		Phase:         inspector.PhaseClassifying,
		FramesScanned: norm.FramesScanned,
		RecordsBuilt:  len(norm.Records),
		CountAToB:     norm.CountAToB,
		CountBToA:     norm.CountBToA,
		TotalDir:      totalDir,
	})

	result := classifier.Classify(norm.Records, totalDir, transport, cfg.NbByte, cfg.NbPacket)
	clk.Now()
	log.Printf("pipeline: classify phase took %s", time.Duration(clk.Elapsed()))

	sendProgress(progress, inspector.ProgressMsg{
		Phase:          inspector.PhaseDone,
		FramesScanned:  norm.FramesScanned,
		RecordsBuilt:   len(norm.Records),
		CountAToB:      norm.CountAToB,
		CountBToA:      norm.CountBToA,
		TotalDir:       totalDir,
		Classification: result,
	})

	return result, nil
}

// openvpnSampleBytes is the fixed record-payload width built solely to
// carry the OpenVPN fixed-offset fields (opcode lives at TCP offset 2 /
// UDP offset 0); wide enough that truncation never clips it.
const openvpnSampleBytes = 8

// RunOpenVPNFingerprint runs one of the two OpenVPN checks ("opcode" or
// "ack") against the first 100 payload-carrying records of the trace at
// path. Unlike the legacy implementation's dedicated OpenVPN-only trace
// parse, this reuses the same normalizer every other operation does —
// see DESIGN.md for why that unification is safe.
func RunOpenVPNFingerprint(path string, check string) (bool, error) {
	src, err := pcapfile.Open(path)
	if err != nil {
		return false, wrap(ErrTraceOpen, "open trace", err)
	}
	defer src.Close()

	norm, err := normalizer.Build(src, openvpnSampleBytes, openvpnfp.SniffLimit())
	if err != nil {
		return false, wrap(ErrTraceOpen, "normalize trace", err)
	}
	if len(norm.Records) < openvpnfp.SniffLimit() {
		return false, wrap(ErrPrecondition, "openvpn fingerprint",
			fmt.Errorf("trace has %d payload-carrying packets, need at least %d", len(norm.Records), openvpnfp.SniffLimit()))
	}

	opcodes := make([]uint8, len(norm.Records))
	seenNames := make(map[string]bool)
	for i, r := range norm.Records {
		opcodes[i] = r.OpenVPN.Opcode
		if name := vpnfields.OpenVPNOpcodeName(r.OpenVPN.Opcode); name != "" {
			seenNames[name] = true
		}
	}
	for name := range seenNames {
		log.Printf("pipeline: observed OpenVPN opcode %s", name)
	}

	switch check {
	case "opcode":
		return openvpnfp.OpcodeSetCheck(opcodes)
	case "ack":
		return openvpnfp.AckTemporalCheck(opcodes)
	default:
		return false, wrap(ErrInvalidArgument, "openvpn fingerprint", fmt.Errorf("unknown check %q, want \"opcode\" or \"ack\"", check))
	}
}
