package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/reflow/wordwrap"
)

const (
	AgentName       = "Narrator"
	PlaceholderText = "What do you do?"
)

// Transcript entry roles.
const (
	entryUser     = "user"
	entryNarrator = "narrator"
	entryNPC      = "npc"
	entrySystem   = "system"
	entryError    = "error"
)

// transcriptEntry is one line of the session transcript. The console keeps
// the transcript itself; the server only returns one turn at a time.
type transcriptEntry struct {
	role    string
	speaker string // display name for entryNPC
	text    string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	world        *consoleWorld
	transcript   []transcriptEntry
	chatViewport viewport.Model
	metaViewport viewport.Model
	input        textinput.Model
	spinner      spinner.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool

	// Talk mode: when set, input goes to the conversation endpoint
	// instead of the turn endpoint.
	talkTarget string

	// Template selection state
	showTemplateModal bool
	templates         []templateEntry
	selectedTemplate  int
	loadingTemplates  bool

	// Quit confirmation state
	showQuitModal bool
}

type templatesLoadedMsg struct {
	templates []templateEntry
	err       error
}

type worldCreatedMsg struct {
	world *consoleWorld
	err   error
}

type worldMsg struct {
	world *consoleWorld
	err   error
}

type turnMsg struct {
	result *turnResult
	err    error
}

type talkMsg struct {
	reply *talkReply
	err   error
}

type changesMsg struct {
	changes []changeRecord
	err     error
}

type revertMsg struct {
	change *changeRecord
	err    error
}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(client *http.Client, cfg *ConsoleConfig) ConsoleUI {
	ti := textinput.New()
	ti.Placeholder = PlaceholderText
	ti.Focus()
	ti.Prompt = promptStyle.Render(":: ")
	ti.CharLimit = 500
	ti.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = loadingStyle

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	ui := ConsoleUI{
		config:            cfg,
		client:            client,
		input:             ti,
		spinner:           sp,
		chatViewport:      chatVp,
		metaViewport:      metaVp,
		ready:             false,
		showTemplateModal: true,
		loadingTemplates:  true,
		selectedTemplate:  0,
	}

	// Resuming an existing world skips template selection.
	if cfg.WorldID != "" {
		if _, err := uuid.Parse(cfg.WorldID); err == nil {
			ui.showTemplateModal = false
			ui.loadingTemplates = false
		}
	}
	return ui
}

func (m ConsoleUI) Init() tea.Cmd {
	if m.config.WorldID != "" && !m.showTemplateModal {
		return m.resumeWorld(m.config.WorldID)
	}
	if m.showTemplateModal {
		return m.loadTemplates()
	}
	return textinput.Blink
}

// writeChatContent rebuilds the chat viewport from the transcript at the
// current width. Called on every append and on resize so wrapping always
// matches the window.
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6
	if chatWidth < 20 {
		chatWidth = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("WORLD ENGINE") + "\n\n")
	content.WriteString("Speak and the world answers. Type /help for commands.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth-6)) + "\n\n")

	for _, e := range m.transcript {
		switch e.role {
		case entryUser:
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(e.text, chatWidth-6) + "\n\n")
		case entryNarrator:
			content.WriteString(formatNarratorResponse(e.text, chatWidth) + "\n\n")
		case entryNPC:
			wrapped := wordwrap.String(e.text, chatWidth-len(e.speaker)-2)
			content.WriteString(speakerStyle.Render(e.speaker+": ") + wrapped + "\n\n")
		case entrySystem:
			content.WriteString(promptStyle.Render(wordwrap.String(e.text, chatWidth)) + "\n\n")
		case entryError:
			content.WriteString(errorStyle.Render("Error: "+e.text) + "\n\n")
		}
	}

	if m.loading {
		content.WriteString(m.spinner.View() + loadingStyle.Render(" thinking...") + "\n")
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

// writeWorldPanel renders the right-hand panel from the latest snapshot.
func (m *ConsoleUI) writeWorldPanel() {
	if m.world == nil {
		m.metaViewport.SetContent(titleStyle.Render("WORLD") + "\n\nLoading...")
		return
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("WORLD") + "\n\n")

	content.WriteString("World ID:\n")
	content.WriteString(m.world.ID.String()[:8] + "...\n\n")

	if p := m.world.Player; p != nil {
		content.WriteString(p.Name + "\n")
		content.WriteString(fmt.Sprintf("HP %d/%d  MP %d/%d\n", p.Stats.Health, p.Stats.MaxHealth, p.Stats.Mana, p.Stats.MaxMana))
		content.WriteString(fmt.Sprintf("Level %d\n", p.Stats.Level))
		content.WriteString(fmt.Sprintf("Gold %d\n\n", p.Gold))

		content.WriteString("Location:\n")
		if loc, ok := m.world.Locations[p.Location]; ok && loc.Name != "" {
			content.WriteString(loc.Name + "\n\n")
		} else if p.Location != "" {
			content.WriteString(p.Location + "\n\n")
		} else {
			content.WriteString("nowhere\n\n")
		}

		content.WriteString(fmt.Sprintf("Items: %d\n", len(p.Inventory)))
	}

	if m.world.Reputation != 0 {
		content.WriteString(fmt.Sprintf("Reputation: %d\n", m.world.Reputation))
	}
	content.WriteString("\n")

	if m.talkTarget != "" {
		content.WriteString(speakerStyle.Render("Talking to:") + "\n")
		content.WriteString(m.npcName(m.talkTarget) + "\n")
		content.WriteString(promptStyle.Render("/leave to stop") + "\n\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• /look /stats\n")
	content.WriteString("• /inventory /actions\n")
	content.WriteString("• /talk <npc> /leave\n")
	content.WriteString("• /changes /revert\n")
	content.WriteString("• /copy /help /quit\n")

	m.metaViewport.SetContent(content.String())
}

// npcName resolves a display name for an NPC id from the snapshot.
func (m *ConsoleUI) npcName(id string) string {
	if m.world != nil {
		if npc, ok := m.world.NPCs[id]; ok && npc.Name != "" {
			return npc.Name
		}
	}
	return id
}

func (m *ConsoleUI) appendEntry(e transcriptEntry) {
	m.transcript = append(m.transcript, e)
	m.writeChatContent()
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	if m.showTemplateModal {
		return m.updateTemplateModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		// The viewport ignores events outside its bounds, so all mouse
		// events can be fanned out.
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.75) - 4
		metaWidth := m.width - chatWidth - 6

		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.input.Width = chatWidth - 8

		m.ready = true
		m.writeChatContent()
		m.writeWorldPanel()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.input.Value())
			if input == "" {
				return m, nil
			}

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			if m.world == nil {
				return m, nil
			}

			m.input.Reset()
			m.loading = true

			if m.talkTarget != "" {
				m.appendEntry(transcriptEntry{role: entryUser, text: input})
				return m, tea.Batch(m.sendTalkMessage(m.talkTarget, input), m.spinner.Tick)
			}

			m.appendEntry(transcriptEntry{role: entryUser, text: input})
			return m, tea.Batch(m.playTurn(input), m.spinner.Tick)
		}

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.writeChatContent()
			return m, cmd
		}

	case turnMsg:
		m.loading = false
		if msg.err != nil {
			m.appendEntry(transcriptEntry{role: entryError, text: msg.err.Error()})
			return m, nil
		}
		m.appendEntry(transcriptEntry{role: entryNarrator, text: msg.result.Message})
		if n := len(msg.result.ChangeIDs); n > 0 {
			m.appendEntry(transcriptEntry{role: entrySystem, text: fmt.Sprintf("%d change(s) recorded", n)})
		}
		return m, m.refreshWorld()

	case talkMsg:
		m.loading = false
		if msg.err != nil {
			m.appendEntry(transcriptEntry{role: entryError, text: msg.err.Error()})
			return m, nil
		}
		reply := msg.reply
		if reply.Opener != "" {
			m.appendEntry(transcriptEntry{role: entrySystem, text: fmt.Sprintf("You say: %q", reply.Opener)})
		}
		m.appendEntry(transcriptEntry{role: entryNPC, speaker: m.npcName(reply.NPCID), text: reply.Text})
		if reply.Annotation != "" {
			m.appendEntry(transcriptEntry{role: entrySystem, text: reply.Annotation})
		}
		return m, m.refreshWorld()

	case changesMsg:
		m.loading = false
		if msg.err != nil {
			m.appendEntry(transcriptEntry{role: entryError, text: msg.err.Error()})
			return m, nil
		}
		m.appendEntry(transcriptEntry{role: entrySystem, text: formatChanges(msg.changes)})

	case revertMsg:
		m.loading = false
		if msg.err != nil {
			m.appendEntry(transcriptEntry{role: entryError, text: msg.err.Error()})
			return m, nil
		}
		c := msg.change
		m.appendEntry(transcriptEntry{role: entrySystem, text: fmt.Sprintf(
			"Reverted %s %s.%s back to %q", c.DataType, c.TargetID, c.FieldName, c.OldValue)})
		return m, m.refreshWorld()

	case worldMsg:
		if msg.err == nil && msg.world != nil {
			m.world = msg.world
			m.writeWorldPanel()
		}

	case worldCreatedMsg:
		m.loading = false
		if msg.err != nil {
			m.appendEntry(transcriptEntry{role: entryError, text: msg.err.Error()})
			return m, nil
		}
		m.world = msg.world
		m.writeWorldPanel()
		m.appendEntry(transcriptEntry{role: entrySystem, text: "World " + m.world.ID.String()[:8] + "... ready."})
		m.input.Focus()
		return m, textinput.Blink
	}

	m.input, tiCmd = m.input.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func formatNarratorResponse(response string, width int) string {
	// Check if response already has a speaker prefix
	hasPrefix := false
	if idx := strings.Index(response, ":"); idx > 0 && idx <= 20 {
		speaker := response[:idx]
		if len(strings.Fields(speaker)) <= 2 {
			hasPrefix = true
		}
	}

	wrapWidth := width
	if !hasPrefix {
		wrapWidth = width - len(AgentName+": ")
	}

	wrappedResponse := wordwrap.String(response, wrapWidth)
	lines := strings.Split(wrappedResponse, "\n")
	var formattedLines []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			formattedLines = append(formattedLines, "")
			continue
		}

		if idx := strings.Index(trimmed, ":"); idx > 0 && idx <= 20 {
			speaker := trimmed[:idx]
			rest := trimmed[idx+1:]
			if len(strings.Fields(speaker)) <= 2 {
				formattedLines = append(formattedLines, speakerStyle.Render(speaker+":")+rest)
				continue
			}
		}

		formattedLines = append(formattedLines, line)
	}

	result := strings.Join(formattedLines, "\n")
	if !hasPrefix {
		result = narratorStyle.Render(AgentName+": ") + result
	}
	return result
}

// formatChanges renders the change log for the chat panel.
func formatChanges(changes []changeRecord) string {
	if len(changes) == 0 {
		return "No changes recorded yet."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Change log (%d):\n", len(changes)))
	for _, c := range changes {
		b.WriteString(fmt.Sprintf("• [%s] %s.%s: %q to %q\n", c.DataType, c.TargetID, c.FieldName, c.OldValue, c.NewValue))
	}
	return b.String()
}

// plainTranscript renders the transcript without styling, for the clipboard.
func (m *ConsoleUI) plainTranscript() string {
	var b strings.Builder
	for _, e := range m.transcript {
		switch e.role {
		case entryUser:
			b.WriteString("You: " + e.text + "\n")
		case entryNarrator:
			b.WriteString(AgentName + ": " + e.text + "\n")
		case entryNPC:
			b.WriteString(e.speaker + ": " + e.text + "\n")
		case entrySystem:
			b.WriteString("[" + e.text + "]\n")
		case entryError:
			b.WriteString("Error: " + e.text + "\n")
		}
	}
	return b.String()
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	m.input.Reset()
	fields := strings.Fields(strings.TrimSpace(input))
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "/help":
		helpText := `
Commands:
• /look - Describe your surroundings
• /inventory - List what you carry
• /stats - Show your character sheet
• /actions - List actions you can take
• /talk <npc> - Start talking to an NPC
• /leave - Stop talking
• /changes - Show the change log
• /revert - Undo the most recent change
• /copy - Copy the transcript to the clipboard
• /quit - Leave the game

Anything without a leading slash is spoken into the world.
`
		m.appendEntry(transcriptEntry{role: entrySystem, text: titleStyle.Render("Help:") + helpText})
		return m, nil

	case "/look", "/inventory", "/stats", "/actions":
		// Server-side shortcuts: the bare word goes through the turn
		// endpoint and comes back as narration.
		if m.world == nil {
			m.appendEntry(transcriptEntry{role: entryError, text: "no world loaded"})
			return m, nil
		}
		word := strings.TrimPrefix(cmd, "/")
		m.loading = true
		m.appendEntry(transcriptEntry{role: entryUser, text: word})
		return m, tea.Batch(m.playTurn(word), m.spinner.Tick)

	case "/talk":
		if len(fields) < 2 {
			m.appendEntry(transcriptEntry{role: entryError, text: "usage: /talk <npc_id>"})
			return m, nil
		}
		npcID := fields[1]
		if m.world == nil || m.world.NPCs == nil {
			m.appendEntry(transcriptEntry{role: entryError, text: "no world loaded"})
			return m, nil
		}
		if _, ok := m.world.NPCs[npcID]; !ok {
			m.appendEntry(transcriptEntry{role: entryError, text: fmt.Sprintf("no NPC %q in this world", npcID)})
			return m, nil
		}
		m.talkTarget = npcID
		m.writeWorldPanel()
		m.appendEntry(transcriptEntry{role: entrySystem, text: "You turn to " + m.npcName(npcID) + ". Everything you type is now spoken to them."})
		return m, nil

	case "/leave":
		if m.talkTarget == "" {
			m.appendEntry(transcriptEntry{role: entrySystem, text: "You are not talking to anyone."})
			return m, nil
		}
		name := m.npcName(m.talkTarget)
		m.talkTarget = ""
		m.writeWorldPanel()
		m.appendEntry(transcriptEntry{role: entrySystem, text: "You step away from " + name + "."})
		return m, nil

	case "/changes":
		if m.world == nil {
			m.appendEntry(transcriptEntry{role: entryError, text: "no world loaded"})
			return m, nil
		}
		m.loading = true
		return m, tea.Batch(m.fetchChanges(), m.spinner.Tick)

	case "/revert":
		if m.world == nil {
			m.appendEntry(transcriptEntry{role: entryError, text: "no world loaded"})
			return m, nil
		}
		m.loading = true
		return m, tea.Batch(m.revertLastChange(), m.spinner.Tick)

	case "/copy":
		if err := clipboard.WriteAll(m.plainTranscript()); err != nil {
			m.appendEntry(transcriptEntry{role: entryError, text: "clipboard: " + err.Error()})
		} else {
			m.appendEntry(transcriptEntry{role: entrySystem, text: "Transcript copied to clipboard."})
		}
		return m, nil

	case "/quit":
		m.showQuitModal = true
		return m, nil

	default:
		m.appendEntry(transcriptEntry{role: entryError, text: "unknown command " + cmd + " (try /help)"})
		return m, nil
	}
}

func (m ConsoleUI) playTurn(utterance string) tea.Cmd {
	return func() tea.Msg {
		result, err := sendUtterance(m.client, m.config.APIBaseURL, m.world.ID, utterance)
		return turnMsg{result, err}
	}
}

func (m ConsoleUI) sendTalkMessage(npcID, message string) tea.Cmd {
	return func() tea.Msg {
		reply, err := sendTalk(m.client, m.config.APIBaseURL, m.world.ID, npcID, message)
		return talkMsg{reply, err}
	}
}

func (m ConsoleUI) fetchChanges() tea.Cmd {
	return func() tea.Msg {
		changes, err := getChanges(m.client, m.config.APIBaseURL, m.world.ID)
		return changesMsg{changes, err}
	}
}

func (m ConsoleUI) revertLastChange() tea.Cmd {
	return func() tea.Msg {
		change, err := revertChange(m.client, m.config.APIBaseURL, m.world.ID)
		return revertMsg{change, err}
	}
}

func (m ConsoleUI) refreshWorld() tea.Cmd {
	return func() tea.Msg {
		world, err := getWorld(m.client, m.config.APIBaseURL, m.world.ID)
		return worldMsg{world, err}
	}
}

func (m ConsoleUI) resumeWorld(id string) tea.Cmd {
	return func() tea.Msg {
		worldID, err := uuid.Parse(id)
		if err != nil {
			return worldCreatedMsg{nil, fmt.Errorf("invalid WORLD_ID: %w", err)}
		}
		world, err := getWorld(m.client, m.config.APIBaseURL, worldID)
		return worldCreatedMsg{world, err}
	}
}

func (m ConsoleUI) loadTemplates() tea.Cmd {
	return func() tea.Msg {
		templates, err := listTemplates(m.client, m.config.APIBaseURL)
		return templatesLoadedMsg{templates, err}
	}
}

func (m ConsoleUI) createWorldFromTemplate(template string) tea.Cmd {
	return func() tea.Msg {
		world, err := createWorld(m.client, m.config.APIBaseURL, template)
		return worldCreatedMsg{world, err}
	}
}

func (m ConsoleUI) updateTemplateModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case templatesLoadedMsg:
		m.loadingTemplates = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.templates = msg.templates
		}

	case worldCreatedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.world = msg.world
		m.showTemplateModal = false
		if m.width > 0 && m.height > 0 {
			chatWidth := int(float64(m.width)*0.75) - 4
			metaWidth := m.width - chatWidth - 6
			m.chatViewport.Width = chatWidth - 2
			m.chatViewport.Height = m.height - 7
			m.metaViewport.Width = metaWidth - 2
			m.metaViewport.Height = m.height - 4
			m.input.Width = chatWidth - 8
		}
		m.transcript = append(m.transcript, transcriptEntry{role: entrySystem, text: "A new world forms around you."})
		m.writeChatContent()
		m.writeWorldPanel()
		m.input.Focus()
		m.ready = true
		return m, textinput.Blink

	case tea.KeyMsg:
		if m.loadingTemplates {
			if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
				return m, tea.Quit
			}
			return m, nil
		}

		if m.err != nil {
			if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyUp:
			if m.selectedTemplate > 0 {
				m.selectedTemplate--
			}
		case tea.KeyDown:
			if m.selectedTemplate < len(m.templates)-1 {
				m.selectedTemplate++
			}
		case tea.KeyEnter:
			if len(m.templates) > 0 {
				entry := m.templates[m.selectedTemplate]
				m.loading = true
				return m, m.createWorldFromTemplate(entry.Filename)
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				if !m.showTemplateModal {
					m.input.Focus()
					return m, textinput.Blink
				}
				return m, nil
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Leave the World?"))
	content.WriteString("\n\n")
	content.WriteString("Your world is saved on the server; you can resume it with WORLD_ID.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderTemplateModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	if m.loadingTemplates {
		content.WriteString(modalTitleStyle.Render("Loading Templates..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Fetching available world templates..."))
	} else if m.err != nil {
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(fmt.Sprintf("Failed to start: %v", m.err)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	} else if m.loading {
		content.WriteString(modalTitleStyle.Render("Creating World..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Shaping the terrain..."))
	} else {
		content.WriteString(modalTitleStyle.Render("Select a World Template"))
		content.WriteString("\n\n")

		for i, t := range m.templates {
			if i == m.selectedTemplate {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", t.Name)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", t.Name)))
			}
			content.WriteString("\n")
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if m.showTemplateModal {
		return m.renderTemplateModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.input.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}
