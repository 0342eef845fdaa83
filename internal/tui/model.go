package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"faqbot/internal/domain"
)

// ChatPort is the TUI-facing subset of the FAQ service.
type ChatPort interface {
	Ask(ctx context.Context, sessionID, text string, k int) (domain.Envelope, error)
}

// exchange is one rendered question/answer pair.
type exchange struct {
	query string
	env   domain.Envelope
	err   error
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	service   ChatPort
	sessionID string
	timeout   time.Duration
	input     textinput.Model
	viewport  viewport.Model
	history   []exchange
	status    string
	ready     bool
}

// New creates a chat model bound to one session.
func New(service ChatPort, sessionID string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return Model{
		service:   service,
		sessionID: sessionID,
		timeout:   timeout,
		input:     ti,
		viewport:  vp,
		status:    "Session " + sessionID + ". Ctrl+C to quit.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
			env, err := m.service.Ask(ctx, m.sessionID, q, 0)
			cancel()
			m.history = append(m.history, exchange{query: q, env: env, err: err})
			if err != nil {
				m.status = "Error: " + err.Error()
			} else {
				m.status = fmt.Sprintf("%s / %s", env.Method, env.Confidence)
			}
			m.input.SetValue("")
			m.refresh()
			return m, nil
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current transcript.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("FAQ Bot")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.history) == 0 {
		return "No questions yet."
	}
	blocks := make([]string, 0, len(m.history))
	for _, ex := range m.history {
		blocks = append(blocks, renderExchange(ex))
	}
	return strings.Join(blocks, "\n\n")
}

func renderExchange(ex exchange) string {
	var b strings.Builder
	b.WriteString(userStyle.Render("you: " + ex.query))
	b.WriteString("\n")
	if ex.err != nil {
		b.WriteString(errorStyle.Render("error: " + ex.err.Error()))
		return b.String()
	}
	env := ex.env
	b.WriteString(highlightBestSentence(env.Answer, ex.query))
	b.WriteString("\n")
	meta := fmt.Sprintf("[%s", env.Method)
	if env.Method == domain.MethodRetrieval {
		meta += fmt.Sprintf(" #%d score=%.3f", *env.MatchedID, env.Score)
	}
	meta += "] "
	b.WriteString(metaStyle.Render(meta))
	b.WriteString(bandStyle(env.Confidence).Render(string(env.Confidence)))
	for _, alt := range env.Alternatives {
		b.WriteString("\n")
		b.WriteString(metaStyle.Render(fmt.Sprintf("  also #%d (%.3f): %s", alt.ID, alt.Score, alt.Question)))
	}
	return b.String()
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	metaStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	unicodeWordRe      = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe         = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func bandStyle(b domain.Band) lipgloss.Style {
	switch b {
	case domain.BandHigh:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	case domain.BandMedium:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	case domain.BandLow:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	}
}

// highlightBestSentence emphasizes the answer sentence sharing the most words
// with the query. Single-sentence answers are returned unchanged.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) < 2 {
		return strings.TrimSpace(text)
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := 0
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if bestScore > 0 && i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
