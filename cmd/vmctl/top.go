// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
)

func init() {
	registerSubcommand("top", cmdTop)
}

const topRefresh = 2 * time.Second

// cmdTop is a live-refreshing table of running VMs, polling "info *"
// on an interval — the same role cmd/bureau-viewer's bubbletea program
// plays for Bureau's own ticket state, per SPEC_FULL.md's DOMAIN STACK
// table.
func cmdTop(args []string) error {
	var g globalFlags
	flagSet := pflag.NewFlagSet("vmctl top", pflag.ContinueOnError)
	g.register(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	model := newTopModel(g)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

type topModel struct {
	globals globalFlags
	table   table.Model
	err     error
}

type topTickMsg time.Time

type topResultMsg struct {
	entries []infoEntry
	err     error
}

func newTopModel(g globalFlags) topModel {
	columns := []table.Column{
		{Title: "ID", Width: 32},
		{Title: "CPUID", Width: 6},
		{Title: "Memory", Width: 10},
		{Title: "Image", Width: 16},
	}
	t := table.New(table.WithColumns(columns), table.WithFocused(false), table.WithHeight(20))
	style := table.DefaultStyles()
	style.Header = style.Header.BorderStyle(lipgloss.NormalBorder()).Bold(true)
	t.SetStyles(style)
	return topModel{globals: g, table: t}
}

func (m topModel) Init() tea.Cmd {
	return tea.Batch(m.poll(), tea.Tick(topRefresh, func(t time.Time) tea.Msg { return topTickMsg(t) }))
}

func (m topModel) poll() tea.Cmd {
	return func() tea.Msg {
		entries, err := fetchInfo(m.globals, "*")
		return topResultMsg{entries: entries, err: err}
	}
}

func (m topModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case topTickMsg:
		return m, tea.Batch(m.poll(), tea.Tick(topRefresh, func(t time.Time) tea.Msg { return topTickMsg(t) }))
	case topResultMsg:
		m.err = msg.err
		if msg.err == nil {
			rows := make([]table.Row, len(msg.entries))
			for i, e := range msg.entries {
				rows[i] = table.Row{e.ID, fmt.Sprintf("%d", e.CPUID), fmt.Sprintf("%d MB", e.RequestedMemory), e.Image}
			}
			m.table.SetRows(rows)
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m topModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("vmctl top: %v\n\npress q to quit", m.err)
	}
	return m.table.View() + "\npress q to quit\n"
}
