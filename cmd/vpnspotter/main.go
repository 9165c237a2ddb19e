// Command vpnspotter classifies the payload byte-columns of a captured
// network trace and prints the resulting token line.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/googlesky/vpnspotter/internal/inspector"
	"github.com/googlesky/vpnspotter/internal/model"
	"github.com/googlesky/vpnspotter/internal/netmeta"
	"github.com/googlesky/vpnspotter/internal/pipeline"
)

func main() {
	logFile, err := os.CreateTemp("", "vpnspotter-*.log")
	if err == nil {
		log.SetOutput(logFile)
		defer logFile.Close()
	}

	var (
		input      = flag.String("input", "", "trace file (required)")
		skipCheck  = flag.Bool("skip_check", false, "skip the exactly-one-endpoint-pair precondition")
		nbPacket   = flag.Int("nb_packet", 50, "target usable packets per direction")
		nbByte     = flag.Int("nb_byte", 24, "number of payload byte-columns to classify")
		filterFlag = flag.String("filter", "latency,zero,length,2", "comma-separated subset of {latency,zero,length}, then the required vote count k")
		latency    = flag.Float64("latency", 20, "percentage of lowest-gap packets to discard")
		zero       = flag.Int("zero", 20, "consecutive-zero-bit threshold")
		useUI      = flag.Bool("ui", false, "launch the live inspector")
		liveIface  = flag.String("live_iface", "", "live interface whose link type is used for traces with an unrecognized datalink (blank: the default-route interface)")
	)
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "vpnspotter: -input is required")
		os.Exit(2)
	}

	filterCfg, err := parseFilterFlag(*filterFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vpnspotter: -filter: %v\n", err)
		os.Exit(2)
	}

	resolvedIface := *liveIface
	if resolvedIface == "" {
		resolvedIface = netmeta.DetectDefaultInterface()
	}
	var linkOverride *model.LinkType
	if resolvedIface != "" {
		if lt, err := netmeta.LinkType(resolvedIface); err != nil {
			fmt.Fprintf(os.Stderr, "vpnspotter: resolving interface %s: %v (unrecognized datalinks are read as raw IP)\n", resolvedIface, err)
		} else {
			linkOverride = &lt
		}
	}

	cfg := pipeline.Config{
		InputPath:         *input,
		SkipCheck:         *skipCheck,
		LinkOverride:      linkOverride,
		NbPacket:          *nbPacket,
		NbByte:            *nbByte,
		LatencyEnabled:    filterCfg.latency,
		ZeroEnabled:       filterCfg.zero,
		LengthEnabled:     filterCfg.length,
		NbFilterNeeded:    filterCfg.k,
		LatencyPercentage: *latency,
		ZeroThreshold:     *zero,
	}

	var result *model.ClassificationResult

	if *useUI {
		progressCh := make(chan inspector.ProgressMsg)
		done := make(chan struct{})
		var runErr error

		go func() {
			result, runErr = pipeline.RunClassification(cfg, progressCh)
			close(done)
		}()

		prog := tea.NewProgram(inspector.New(progressCh), tea.WithAltScreen())
		if _, err := prog.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "vpnspotter: inspector: %v\n", err)
		}
		// Keep consuming progress after the inspector exits so a run the
		// user quit early is not left blocked on an unread send.
		go func() {
			for range progressCh {
			}
		}()
		<-done
		err = runErr
	} else {
		result, err = pipeline.RunClassification(cfg, nil)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "vpnspotter: %v\n", err)
		os.Exit(exitCodeFor(err))
	}

	fmt.Println(result.Tokens())
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidArgument):
		return 2
	case errors.Is(err, pipeline.ErrTraceOpen):
		return 3
	case errors.Is(err, pipeline.ErrPrecondition):
		return 4
	case errors.Is(err, pipeline.ErrInsufficientPackets):
		return 5
	default:
		return 1
	}
}

type parsedFilters struct {
	latency, zero, length bool
	k                      int
}

func parseFilterFlag(s string) (parsedFilters, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 1 {
		return parsedFilters{}, fmt.Errorf("empty -filter value")
	}

	kStr := parts[len(parts)-1]
	k, err := strconv.Atoi(kStr)
	if err != nil {
		return parsedFilters{}, fmt.Errorf("trailing vote count %q is not an integer", kStr)
	}
	if k < 0 || k > 3 {
		return parsedFilters{}, fmt.Errorf("vote count %d out of range [0,3]", k)
	}

	var pf parsedFilters
	pf.k = k
	for _, name := range parts[:len(parts)-1] {
		switch strings.TrimSpace(name) {
		case "latency":
			pf.latency = true
		case "zero":
			pf.zero = true
		case "length":
			pf.length = true
		case "":
			// allow a bare "2" meaning no filters enabled
		default:
			return parsedFilters{}, fmt.Errorf("unknown filter %q", name)
		}
	}
	return pf, nil
}
