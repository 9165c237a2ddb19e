package inspector

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/googlesky/vpnspotter/internal/model"
)

func TestUpdatePopulatesColumnViewportOnClassification(t *testing.T) {
	ch := make(chan ProgressMsg)
	m := New(ch)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)
	if !m.ready {
		t.Fatalf("expected viewport to be ready after WindowSizeMsg")
	}

	cr := model.NewClassificationResult(2)
	cr.FieldType[0] = model.TypeStable
	cr.FieldProb[0][model.TypeStable] = 90
	cr.FieldType[1] = model.TypeHighEntropy
	cr.FieldProb[1][model.TypeHighEntropy] = 55

	next, _ = m.Update(ProgressMsg{Phase: PhaseDone, Classification: cr})
	m = next.(Model)

	view := m.columns.View()
	if !strings.Contains(view, "column  type  confidence") {
		t.Errorf("column viewport missing header, got %q", view)
	}
	if !strings.Contains(m.View(), "avg entropy (smoothed):") {
		t.Errorf("full view missing entropy summary line")
	}
}

func TestQuitKeyTerminates(t *testing.T) {
	m := New(make(chan ProgressMsg))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected a quit command")
	}
}
