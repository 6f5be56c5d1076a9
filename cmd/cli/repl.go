package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gogrid/adapters/excel"
	"gogrid/adapters/memory"
	"gogrid/app"
	"gogrid/domain/core"
	"gogrid/domain/grid"
	"gogrid/internal"
	"gogrid/internal/compute"
	"gogrid/internal/render"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const (
	historyFile = ".gogrid_history"
	promptMain  = "grid> "
	replHelp    = `commands:
  <cell> <text>   set a cell, e.g. "B2 =A1*2" or "A1 -3"
  clear <cell>    empty a cell
  show            print the computed grid
  raw             print the raw grid
  summary         list negative and failed cells
  load <file>     replace the grid with a .json, .csv or .xlsx file
  help            this text
  quit            leave`
)

func newReplCmd(logger func() *internal.Logger) *cobra.Command {
	var rows int

	return &cobra.Command{
		Use:   "repl",
		Short: "Edit a grid interactively with live recompute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ch := compute.NewChannel(nil, logger())
			defer ch.Close()

			grids := app.NewGridService(memory.NewGridRepository(), ch, nil, nil,
				app.GridServiceConfig{Rows: rows}, logger())
			sess := &session{grids: grids, key: core.DefaultGridKey, rows: rows}
			return runRepl(cmd.Context(), sess, cmd.OutOrStdout())
		},
	}
}

func runRepl(ctx context.Context, sess *session, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Fprintln(out, "gogrid - type help for commands")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		line, err := ln.Prompt(promptMain)
		if stderrors.Is(err, io.EOF) || stderrors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)

		text, quit, err := sess.exec(ctx, line)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}
		if text != "" {
			fmt.Fprintln(out, text)
		}
		if quit {
			return nil
		}
	}
}

// session is one interactive grid backed by an in-memory store
type session struct {
	grids *app.GridService
	key   core.GridKey
	rows  int
}

// exec runs one REPL line and returns the text to print
func (s *session) exec(ctx context.Context, line string) (string, bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false, nil
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "exit", ":q":
		return "", true, nil
	case "help", "?":
		return replHelp, false, nil
	case "show":
		view, err := s.grids.Recompute(ctx, s.key)
		if err != nil {
			return "", false, err
		}
		return render.Markdown(view.Result), false, nil
	case "raw":
		view, err := s.grids.Open(ctx, s.key)
		if err != nil {
			return "", false, err
		}
		return render.Markdown(grid.ComputedGrid(view.RawData)), false, nil
	case "summary":
		sum, err := s.grids.Summary(ctx, s.key)
		if err != nil {
			return "", false, err
		}
		var b strings.Builder
		for _, h := range sum.Negatives {
			fmt.Fprintf(&b, "negative %s: %s\n", h.Cell, h.Value)
		}
		for _, h := range sum.Errors {
			fmt.Fprintf(&b, "error %s: %s\n", h.Cell, h.Value)
		}
		if b.Len() == 0 {
			return "no negative or failed cells", false, nil
		}
		return strings.TrimRight(b.String(), "\n"), false, nil
	case "load":
		if len(fields) != 2 {
			return "", false, fmt.Errorf("usage: load <file>")
		}
		raw, err := excel.NewDataReader(fields[1]).ReadGrid(s.rows)
		if err != nil {
			return "", false, err
		}
		if _, err := s.grids.Replace(ctx, s.key, raw); err != nil {
			return "", false, err
		}
		return s.show(ctx)
	case "clear":
		if len(fields) != 2 {
			return "", false, fmt.Errorf("usage: clear <cell>")
		}
		return s.set(ctx, fields[1], "")
	}

	// <cell> <text>: the text keeps its inner spacing
	cell := fields[0]
	text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), cell))
	return s.set(ctx, cell, text)
}

func (s *session) set(ctx context.Context, cell, text string) (string, bool, error) {
	update, err := s.grids.SetCell(ctx, s.key, cell, text)
	if err != nil {
		return "", false, err
	}
	out, _, err := s.show(ctx)
	if err != nil {
		return "", false, err
	}
	if update.Highlight {
		out = fmt.Sprintf("%s is negative\n%s", update.Cell, out)
	}
	return out, false, nil
}

func (s *session) show(ctx context.Context) (string, bool, error) {
	view, err := s.grids.Recompute(ctx, s.key)
	if err != nil {
		return "", false, err
	}
	return render.Markdown(view.Result), false, nil
}
