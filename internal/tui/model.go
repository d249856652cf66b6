package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"slmchat/internal/config"
	"slmchat/internal/domain"
	"slmchat/internal/index"
	"slmchat/internal/ingest"
	"slmchat/internal/session"
)

// ChatPort is the TUI-facing subset of a session.
type ChatPort interface {
	SetCredential(token string) (bool, string)
	Upload(ctx context.Context, upload *ingest.Upload) domain.Result
	Begin(message, modelName string, params domain.Params) (*session.Pending, domain.Result)
	Complete(ctx context.Context, p *session.Pending) (domain.Turn, string)
	Clear() string
	Conversation() domain.Conversation
	Index() *index.Index
}

const helpText = `Commands:
  /key <token>       set the Hugging Face API token (hf_...)
  /upload <path>     index a PDF, DOCX or text file for document QA
  /model <name|n>    select a model by name or number
  /models            list models
  /temp <0.01-1>     set temperature
  /topp <0.01-1>     set top_p
  /maxlen <20-2040>  set max_length
  /clear             clear the chat history
  /help              show this help
Anything else is sent to the model. Ctrl+C quits.`

type turnDoneMsg struct {
	turn   domain.Turn
	status string
}

type uploadDoneMsg struct {
	result domain.Result
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	port     ChatPort
	models   config.ModelTable
	model    string
	params   domain.Params
	input    textinput.Model
	viewport viewport.Model
	status   string
	busy     bool
	ready    bool
}

// New creates a chat screen bound to one session.
func New(ctx context.Context, port ChatPort, models config.ModelTable, defaults domain.Params, status string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message or /help and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	if status == "" {
		status = "Please enter your API key with /key hf_..."
	}
	return Model{
		ctx:      ctx,
		port:     port,
		models:   models,
		model:    models.Default(),
		params:   defaults,
		input:    ti,
		viewport: vp,
		status:   status,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := conversationBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		totalHeaderLines := 3                                    // title + settings + document
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + ih + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-ch)
		m.refresh()
		return m, nil

	case turnDoneMsg:
		m.busy = false
		m.status = msg.status
		if m.status == "" {
			m.status = "Ready."
		}
		m.refresh()
		return m, nil

	case uploadDoneMsg:
		m.busy = false
		m.status = msg.result.Text
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			line := m.input.Value()
			m.input.SetValue("")
			if strings.HasPrefix(strings.TrimSpace(line), "/") {
				return m.command(strings.TrimSpace(line))
			}
			return m.submit(line)
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit records the user turn right away and answers it in the background.
func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	if m.busy {
		m.status = "Still working on the previous request."
		return m, nil
	}
	pending, res := m.port.Begin(line, m.model, m.params)
	m.status = res.Text
	if pending == nil {
		m.refresh()
		return m, nil
	}
	m.busy = true
	m.status = fmt.Sprintf("Asking %s…", m.model)
	m.refresh()

	port, ctx := m.port, m.ctx
	return m, func() tea.Msg {
		turn, status := port.Complete(ctx, pending)
		return turnDoneMsg{turn: turn, status: status}
	}
}

func (m Model) command(line string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/help":
		m.status = "Help shown above."
		m.viewport.SetContent(helpText)
		return m, nil

	case "/key":
		_, m.status = m.port.SetCredential(arg)

	case "/upload":
		if m.busy {
			m.status = "Still working on the previous request."
			return m, nil
		}
		if arg == "" {
			m.status = "Usage: /upload <path>"
			return m, nil
		}
		m.busy = true
		m.status = "Processing " + filepath.Base(arg) + "…"
		port, ctx := m.port, m.ctx
		return m, func() tea.Msg {
			return uploadDoneMsg{result: uploadFile(ctx, port, arg)}
		}

	case "/models":
		var b strings.Builder
		for i, n := range m.models.Names() {
			marker := " "
			if n == m.model {
				marker = "*"
			}
			fmt.Fprintf(&b, "%s %d. %s\n", marker, i+1, n)
		}
		m.viewport.SetContent(b.String())
		m.status = "Select with /model <name|number>."
		return m, nil

	case "/model":
		if selected, ok := m.pickModel(arg); ok {
			m.model = selected
			m.status = "Model: " + selected
		} else {
			m.status = fmt.Sprintf("Unknown model %q. See /models.", arg)
		}

	case "/temp":
		if v, err := strconv.ParseFloat(arg, 64); err == nil && v >= domain.MinTemperature && v <= domain.MaxTemperature {
			m.params.Temperature = v
			m.status = fmt.Sprintf("Temperature: %.2f", v)
		} else {
			m.status = fmt.Sprintf("Temperature must be between %.2f and %.2f.", domain.MinTemperature, domain.MaxTemperature)
		}

	case "/topp":
		if v, err := strconv.ParseFloat(arg, 64); err == nil && v >= domain.MinTopP && v <= domain.MaxTopP {
			m.params.TopP = v
			m.status = fmt.Sprintf("Top P: %.2f", v)
		} else {
			m.status = fmt.Sprintf("Top P must be between %.2f and %.2f.", domain.MinTopP, domain.MaxTopP)
		}

	case "/maxlen":
		if v, err := strconv.Atoi(arg); err == nil && v >= domain.MinMaxLength && v <= domain.MaxMaxLength {
			m.params.MaxLength = v
			m.status = fmt.Sprintf("Max length: %d", v)
		} else {
			m.status = fmt.Sprintf("Max length must be between %d and %d.", domain.MinMaxLength, domain.MaxMaxLength)
		}

	case "/clear":
		m.status = m.port.Clear()

	default:
		m.status = fmt.Sprintf("Unknown command %s. Type /help.", name)
		return m, nil
	}
	m.refresh()
	return m, nil
}

func (m Model) pickModel(arg string) (string, bool) {
	names := m.models.Names()
	if n, err := strconv.Atoi(arg); err == nil {
		if n >= 1 && n <= len(names) {
			return names[n-1], true
		}
		return "", false
	}
	for _, name := range names {
		if strings.EqualFold(name, arg) {
			return name, true
		}
	}
	return "", false
}

func uploadFile(ctx context.Context, port ChatPort, path string) domain.Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.Failure(err)
	}
	return port.Upload(ctx, &ingest.Upload{Name: filepath.Base(path), Data: data})
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

// View renders the header, conversation, input line and status.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("💬 Small Language Models")
	settings := dimStyle.Render(fmt.Sprintf("%s · temperature %.2f · top_p %.2f · max_length %d",
		m.model, m.params.Temperature, m.params.TopP, m.params.MaxLength))
	doc := dimStyle.Render("No document. Free chat mode.")
	if ix := m.port.Index(); ix != nil {
		doc = dimStyle.Render(fmt.Sprintf("📄 %s (%d chunks): %s", ix.FileName(), ix.Len(), ix.Summary()))
	}
	conversation := conversationBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + settings + "\n" + doc + "\n" + conversation + "\n" + input + "\n" + status
}

func (m Model) renderConversation() string {
	conv := m.port.Conversation()
	if len(conv) == 0 {
		return "No messages yet. Type /help for commands."
	}
	documentMode := m.port.Index() != nil
	var b strings.Builder
	for i, t := range conv {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(userStyle.Render("You: "))
		b.WriteString(t.User)
		b.WriteString("\n")
		b.WriteString(assistantStyle.Render("Assistant: "))
		switch {
		case !t.Answered():
			b.WriteString(dimStyle.Render("…"))
		case documentMode:
			b.WriteString(highlightBestSentence(*t.Assistant, t.User))
		default:
			b.WriteString(*t.Assistant)
		}
	}
	return b.String()
}

var (
	conversationBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	dimStyle             = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	unicodeWordRe        = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe           = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence marks the sentence of text sharing the most words
// with query. Document answers are short, so this points at the key line.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) <= 1 {
		return strings.TrimSpace(text)
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
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
