package cmd

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/prateekshukla17/XenCRM-Backend/internal/events"
)

type eventMsg events.DeliveryEvent

type streamClosedMsg struct{}

type WatchModel struct {
	filter string
	events []events.DeliveryEvent
	width  int
	height int
	quit   bool
}

func NewWatchModel(filter string) *WatchModel {
	return &WatchModel{
		filter: filter,
		events: make([]events.DeliveryEvent, 0),
	}
}

func (m *WatchModel) Init() tea.Cmd {
	return nil
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case streamClosedMsg:
		m.quit = true
		return m, tea.Quit
	case eventMsg:
		m.events = append(m.events, events.DeliveryEvent(msg))
		// Keep only the last N events that fit in the view
		maxEvents := m.height - 5
		if maxEvents > 0 && len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
	}
	return m, nil
}

func (m *WatchModel) View() string {
	if m.quit {
		return ""
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("XenCRM Watch"))
	s.WriteString(fmt.Sprintf(" - %s\n\n", m.filter))

	s.WriteString(headerStyle.Render(fmt.Sprintf("%-38s %-10s %-8s %-30s", "COMMUNICATION", "STATUS", "ATTEMPT", "MESSAGE")))
	s.WriteString("\n")

	for _, e := range m.events {
		var statusStyled string
		switch e.Status {
		case events.EventStatusDelivered:
			statusStyled = deliveredStyle.Render(string(e.Status))
		case events.EventStatusFailed:
			statusStyled = failedStyle.Render(string(e.Status))
		case events.EventStatusRetrying:
			statusStyled = retryingStyle.Render(string(e.Status))
		default:
			statusStyled = string(e.Status)
		}

		line := fmt.Sprintf("%-38s %-10s %-8d %-30s",
			truncate(e.CommunicationID, 37),
			statusStyled,
			e.Attempt,
			truncate(e.Message, 40),
		)
		s.WriteString(line + "\n")
	}

	if len(m.events) == 0 {
		s.WriteString("\n  Waiting for events...\n")
	}

	s.WriteString("\n  (Press q to quit)")

	return s.String()
}

func runWatchUI(stream <-chan events.DeliveryEvent) error {
	filter := watchCommunicationID
	if filter == "" {
		filter = "campaign " + watchCampaignID
	}

	m := NewWatchModel(filter)
	p := tea.NewProgram(m)

	go func() {
		for event := range stream {
			p.Send(eventMsg(event))
		}
		p.Send(streamClosedMsg{})
	}()

	_, err := p.Run()
	return err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
