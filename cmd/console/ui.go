package main

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/nusantara/internal/sim"
	"github.com/jwebster45206/nusantara/pkg/script"
	"github.com/muesli/reflow/wordwrap"
)

const PlaceHolderText = "Chat, or type /help..."

type lineKind int

const (
	lineInput lineKind = iota
	lineOutput
	lineEffect
	lineBroadcast
	lineError
)

type transcriptLine struct {
	kind lineKind
	text string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	session      *session
	effects      <-chan sim.Effect
	colorMarker  string
	transcript   []transcriptLine
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	busy         bool

	showQuitModal bool
}

type resultMsg struct {
	lines []string
	err   error
}

type effectMsg struct {
	effect sim.Effect
}

type effectsClosedMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(2)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	effectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	broadcastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")). // yellow
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

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
)

func NewConsoleUI(s *session, effects <-chan sim.Effect, colorMarker string) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 500
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	return ConsoleUI{
		session:      s,
		effects:      effects,
		colorMarker:  colorMarker,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: viewport.New(20, 20),
		transcript: []transcriptLine{
			{lineOutput, "Welcome to the NusantaraScript console. /join <name> to start, /help for commands."},
		},
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForEffect())
}

// waitForEffect delivers the next world effect as a message
func (m ConsoleUI) waitForEffect() tea.Cmd {
	return func() tea.Msg {
		fx, ok := <-m.effects
		if !ok {
			return effectsClosedMsg{}
		}
		return effectMsg{fx}
	}
}

func (m ConsoleUI) execute(input string) tea.Cmd {
	return func() tea.Msg {
		lines, err := m.session.Execute(context.Background(), input)
		return resultMsg{lines, err}
	}
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.7) - 2
		metaWidth := m.width - chatWidth - 4
		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 5
		m.metaViewport.Width = metaWidth
		m.metaViewport.Height = m.height - 2
		m.textarea.SetWidth(chatWidth - 2)
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			m.append(lineInput, "> "+input)
			m.busy = true
			m.refresh()
			return m, m.execute(input)
		}

	case resultMsg:
		m.busy = false
		switch {
		case msg.err == errExit:
			return m, tea.Quit
		case msg.err == errCopy:
			if err := clipboard.WriteAll(m.plainTranscript()); err != nil {
				m.append(lineError, "Copy failed: "+err.Error())
			} else {
				m.append(lineOutput, fmt.Sprintf("Copied %d lines to the clipboard", len(m.transcript)))
			}
		case msg.err != nil:
			m.append(lineError, "Error: "+msg.err.Error())
		}
		for _, line := range msg.lines {
			m.append(lineOutput, line)
		}
		m.refresh()
		return m, nil

	case effectMsg:
		if text, kind := m.describe(msg.effect); text != "" {
			m.append(kind, text)
			m.refresh()
		}
		return m, m.waitForEffect()

	case effectsClosedMsg:
		return m, nil
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *ConsoleUI) append(kind lineKind, text string) {
	m.transcript = append(m.transcript, transcriptLine{kind, text})
}

func (m ConsoleUI) plainTranscript() string {
	var b strings.Builder
	for _, line := range m.transcript {
		b.WriteString(line.text)
		b.WriteString("\n")
	}
	return b.String()
}

// describe renders an effect as one transcript line
func (m ConsoleUI) describe(fx sim.Effect) (string, lineKind) {
	text := stripColors(fx.Text, m.colorMarker)
	switch fx.Kind {
	case script.ActionSendMessage.String():
		return fmt.Sprintf("[→ %s] %s", fx.Player, text), lineEffect
	case script.ActionBroadcast.String():
		return "[broadcast] " + text, lineBroadcast
	case sim.EffectChat:
		return text, lineOutput
	case sim.EffectConsole:
		return "[console] " + text, lineEffect
	case sim.EffectDeath:
		return "[death] " + text, lineBroadcast
	case script.ActionGiveItem.String():
		return fmt.Sprintf("[item] %s got %d %s", fx.Player, fx.Amount, fx.Material), lineEffect
	case script.ActionKick.String():
		return fmt.Sprintf("[kick] %s: %s", fx.Player, text), lineEffect
	case script.ActionTeleport.String():
		if fx.Position != nil {
			return fmt.Sprintf("[teleport] %s to %s %.1f %.1f %.1f", fx.Player, fx.Position.World, fx.Position.X, fx.Position.Y, fx.Position.Z), lineEffect
		}
	case script.ActionPlaySound.String():
		return fmt.Sprintf("[sound] %s hears %s", fx.Player, text), lineEffect
	case script.ActionGiveEffect.String():
		return fmt.Sprintf("[effect] %s gets %s %d for %ds", fx.Player, fx.Material, fx.Level, fx.Seconds), lineEffect
	}
	return fmt.Sprintf("[%s] %s", fx.Kind, fx.Player), lineEffect
}

// stripColors removes marker+code pairs such as "§a"
func stripColors(text, marker string) string {
	if marker == "" || !strings.Contains(text, marker) {
		return text
	}
	var b strings.Builder
	for {
		i := strings.Index(text, marker)
		if i < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:i])
		text = text[i+len(marker):]
		if text != "" {
			_, size := utf8.DecodeRuneInString(text)
			text = text[size:]
		}
	}
}

// refresh rebuilds both panels for the current width
func (m *ConsoleUI) refresh() {
	if !m.ready {
		return
	}
	width := m.chatViewport.Width - 2
	if width < 10 {
		width = 10
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("NUSANTARASCRIPT") + "\n\n")
	for _, line := range m.transcript {
		wrapped := wordwrap.String(line.text, width)
		switch line.kind {
		case lineInput:
			wrapped = inputStyle.Render(wrapped)
		case lineEffect:
			wrapped = effectStyle.Render(wrapped)
		case lineBroadcast:
			wrapped = broadcastStyle.Render(wrapped)
		case lineError:
			wrapped = errorStyle.Render(wrapped)
		}
		content.WriteString(wrapped + "\n")
	}
	if m.busy {
		content.WriteString(promptStyle.Render("…") + "\n")
	}
	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
	m.metaViewport.SetContent(m.writeMetadata())
}

func (m ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("PLAYER") + "\n\n")

	p, ok := m.session.Player()
	if !ok {
		content.WriteString("None\n")
	} else {
		spec := p.Spec()
		content.WriteString(fmt.Sprintf("%s\n", p.Name()))
		content.WriteString(fmt.Sprintf("HP: %d/%d\n", spec.HP, spec.MaxHP))
		content.WriteString(fmt.Sprintf("Food: %d\n", p.Food()))
		content.WriteString(fmt.Sprintf("World: %s\n", p.World()))
		if item := p.HeldItem(); item != "" {
			content.WriteString(fmt.Sprintf("Holding: %s\n", item))
		}
		if p.IsFlying() {
			content.WriteString("Flying\n")
		}
		if p.IsSneaking() {
			content.WriteString("Sneaking\n")
		}
		if len(spec.Inventory) > 0 {
			content.WriteString("\nInventory:\n")
			for _, k := range sortedKeys(spec.Inventory) {
				content.WriteString(fmt.Sprintf("• %s x%d\n", k, spec.Inventory[k]))
			}
		}
	}

	content.WriteString("\n" + titleStyle.Render("VARIABLES") + "\n\n")
	for _, line := range m.session.variables() {
		content.WriteString(wordwrap.String(line, m.metaViewport.Width) + "\n")
	}
	return content.String()
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
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}

	case effectMsg:
		m.append(lineEffect, stripColors(msg.effect.Text, m.colorMarker))
		return m, m.waitForEffect()
	}
	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Variables are saved on exit.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue"))

	modal := modalStyle.Width(40).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	chat := chatPanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.chatViewport.View(),
		"",
		m.textarea.View(),
	))
	meta := metaPanelStyle.Render(m.metaViewport.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, chat, "  ", meta)
}
