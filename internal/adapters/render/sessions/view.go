package sessions

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const defaultWindow = 15 * time.Minute

// Row is one stored session.
type Row struct {
	Key     string
	Session domain.Session
	Active  bool
}

type RenderOptions struct {
	Now time.Time
	// Window is the lifetime a full expiry bar stands for.
	Window time.Duration
}

func renderView(rows []Row, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Sessions"),
		s.header.Render(fmt.Sprintf("sessions: %d", len(rows))),
	}

	if len(rows) == 0 {
		lines = append(lines, s.empty.Render("No stored sessions."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, row := range rows {
		lines = append(lines, s.section.Render(renderRow(row, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderRow(row Row, opts RenderOptions, s styles) string {
	title := s.key.Render(row.Key)
	if row.Active {
		title = s.activeKey.Render("* "+row.Key) + " " + s.label.Render("(active)")
	}

	parts := []string{
		title,
		s.detail.Render(fmt.Sprintf("type: %s", sessionTypeLabel(row.Session.Type))),
		s.detail.Render(fmt.Sprintf("user: %s  org: %s", orNA(row.Session.UserID), orNA(row.Session.OrganizationID))),
		s.detail.Render(fmt.Sprintf("key: %s", shortKey(row.Session.PublicKey))),
		expiryLine(row.Session, opts, s),
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func expiryLine(session domain.Session, opts RenderOptions, s styles) string {
	label := s.label.Render("expires:")
	expiresAt := session.ExpiresAt()

	if opts.Now.IsZero() {
		return label + " " + s.detail.Render(expiresAt.UTC().Format(time.RFC3339))
	}
	if !domain.IsValidSession(&session, opts.Now) {
		return label + " " + s.warning.Render("[expired]") + " " + s.label.Render(expiresAt.UTC().Format(time.RFC3339))
	}

	window := opts.Window
	if window <= 0 {
		window = defaultWindow
	}
	remaining := expiresAt.Sub(opts.Now)
	leftPercent := clampPercent(100 * remaining.Seconds() / window.Seconds())
	meta := lipgloss.NewStyle().Foreground(interpolateColor(leftPercent, 0, 100)).Render(formatRemaining(remaining))

	return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", renderProgressBar(leftPercent, 24, s), " ", meta)
}

func renderProgressBar(leftPercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(leftPercent) / 100.0))
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func formatRemaining(remaining time.Duration) string {
	switch {
	case remaining < time.Minute:
		return fmt.Sprintf("in %ds", int(math.Ceil(remaining.Seconds())))
	case remaining < time.Hour:
		return fmt.Sprintf("in %dm", int(math.Ceil(remaining.Minutes())))
	case remaining < 48*time.Hour:
		return fmt.Sprintf("in %dh", int(math.Ceil(remaining.Hours())))
	default:
		return fmt.Sprintf("in %dd", int(math.Ceil(remaining.Hours()/24)))
	}
}

func sessionTypeLabel(t domain.SessionType) string {
	switch t {
	case domain.SessionTypeReadOnly:
		return "read-only"
	case domain.SessionTypeReadWrite:
		return "read-write"
	default:
		return "unknown"
	}
}

func shortKey(publicKey string) string {
	if publicKey == "" {
		return "none"
	}
	if len(publicKey) <= 16 {
		return publicKey
	}
	return publicKey[:8] + "..." + publicKey[len(publicKey)-8:]
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return "n/a"
	}
	return v
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// interpolateColor maps value onto the 240..255 greyscale ramp.
func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	return lipgloss.Color(fmt.Sprintf("%d", int(240.0+15.0*normalized)))
}
