// Package inspector is a Bubble Tea live view for a trace analysis run: it
// renders the current phase, frame/record counts, per-direction packet
// counts, and — once
// classification finishes — the winning field type and confidence for
// each payload column. It is strictly a debugging aid: the pipeline always
// computes and prints its token line / OpenVPN verdict on its own, with or
// without the inspector attached.
package inspector

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/googlesky/vpnspotter/internal/model"
)

// Phase names the pipeline stage a ProgressMsg reports on.
type Phase string

const (
	PhaseNormalizing Phase = "normalizing"
	PhaseFiltering   Phase = "filtering"
	PhaseClassifying Phase = "classifying"
	PhaseDone        Phase = "done"
)

// ProgressMsg is published by the pipeline as it works through a trace.
// The inspector never reads PacketRecords directly — only these
// already-computed summary counters, mirroring the teacher's collector/UI
// split where the TUI reads Snapshot values off a channel rather than the
// raw per-socket state.
type ProgressMsg struct {
	Phase         Phase
	FramesScanned int
	RecordsBuilt  int
	CountAToB     int
	CountBToA     int
	TotalDir      model.Direction

	Classification *model.ClassificationResult
	Err            error
}

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	styleLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleValue   = lipgloss.NewStyle().Bold(true)
	styleFooter  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	styleErr     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	styleColumn  = lipgloss.NewStyle().Padding(0, 1)
	styleColHead = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Model is the root Bubble Tea model for the live inspector.
type Model struct {
	width, height int

	progressCh  <-chan ProgressMsg
	latest      ProgressMsg
	entropyHist []*ringBuffer
	avgEntropy  *ema
	columns     viewport.Model
	ready       bool

	paused bool
	done   bool
}

// New builds an inspector that reads progress off progressCh until it is
// closed or the user quits.
func New(progressCh <-chan ProgressMsg) Model {
	return Model{progressCh: progressCh, avgEntropy: newEMA(0.3)}
}

func waitForProgress(ch <-chan ProgressMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return tea.Quit()
		}
		return msg
	}
}

func (m Model) Init() tea.Cmd {
	return waitForProgress(m.progressCh)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		columnsHeight := m.height - 9
		if columnsHeight < 3 {
			columnsHeight = 3
		}
		if !m.ready {
			m.columns = viewport.New(m.width, columnsHeight)
			m.ready = true
		} else {
			m.columns.Width, m.columns.Height = m.width, columnsHeight
		}
		if m.latest.Classification != nil {
			m.columns.SetContent(renderColumnTable(m.latest.Classification))
		}
		return m, nil

	case ProgressMsg:
		if !m.paused {
			m.latest = msg
			if msg.Classification != nil {
				m.syncEntropyHistory(msg.Classification)
				if m.ready {
					m.columns.SetContent(renderColumnTable(msg.Classification))
				}
			}
			if msg.Phase == PhaseDone || msg.Err != nil {
				m.done = true
				return m, nil
			}
		}
		return m, waitForProgress(m.progressCh)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "p":
			m.paused = !m.paused
			if !m.paused {
				return m, waitForProgress(m.progressCh)
			}
			return m, nil
		}
		if m.ready {
			var cmd tea.Cmd
			m.columns, cmd = m.columns.Update(msg)
			return m, cmd
		}
		return m, nil
	}
	return m, nil
}

func renderColumnTable(cr *model.ClassificationResult) string {
	var b strings.Builder
	b.WriteString(styleColHead.Render("column  type  confidence"))
	b.WriteString("\n")
	for i, ft := range cr.FieldType {
		conf := cr.FieldProb[i][ft]
		b.WriteString(styleColumn.Render(fmt.Sprintf("%-6d  %-4s  %.1f", i, ft.Token(), conf)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) syncEntropyHistory(cr *model.ClassificationResult) {
	if len(m.entropyHist) != len(cr.FieldType) {
		m.entropyHist = make([]*ringBuffer, len(cr.FieldType))
		for i := range m.entropyHist {
			m.entropyHist[i] = newRingBuffer()
		}
	}

	var sum float64
	for i, probs := range cr.FieldProb {
		v := probs[model.TypeHighEntropy]
		m.entropyHist[i].push(v)
		sum += v
	}
	if len(cr.FieldProb) > 0 {
		m.avgEntropy.update(sum / float64(len(cr.FieldProb)))
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return "starting inspector..."
	}

	var b strings.Builder
	b.WriteString(styleTitle.Render("vpnspotter — live inspector"))
	b.WriteString("\n\n")

	if m.latest.Err != nil {
		b.WriteString(styleErr.Render(fmt.Sprintf("error: %v", m.latest.Err)))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("%s %s\n", styleLabel.Render("phase:"), styleValue.Render(string(m.latest.Phase))))
	b.WriteString(fmt.Sprintf("%s %s\n", styleLabel.Render("frames scanned:"), styleValue.Render(fmt.Sprint(m.latest.FramesScanned))))
	b.WriteString(fmt.Sprintf("%s %s\n", styleLabel.Render("records built:"), styleValue.Render(fmt.Sprint(m.latest.RecordsBuilt))))
	b.WriteString(fmt.Sprintf("%s A->B=%d B->A=%d (total=%s)\n",
		styleLabel.Render("direction tally:"), m.latest.CountAToB, m.latest.CountBToA, m.latest.TotalDir))

	if cr := m.latest.Classification; cr != nil {
		b.WriteString(fmt.Sprintf("%s %.2f\n", styleLabel.Render("avg entropy (smoothed):"), m.avgEntropy.value))
		b.WriteString("\n")
		if m.ready {
			b.WriteString(m.columns.View())
		}
	}

	if m.paused {
		b.WriteString("\n" + styleErr.Render("PAUSED"))
	}

	b.WriteString("\n" + styleFooter.Render("p pause  q quit  ↑/↓ scroll columns"))
	return b.String()
}
