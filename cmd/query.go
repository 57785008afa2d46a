// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"frostline/cli/internal/logging"
	"frostline/cli/internal/result"
	"frostline/cli/internal/statement"

	"atomicgo.dev/cursor"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	queryTimeoutSecs int
	queryDescribe    bool
	queryBinds       []string
	queryOptions     []string
	maxRowsShown     int
)

// queryCmd represents the query command for executing one SQL statement.
// It resumes the stored session, runs the statement through the execution
// engine, and renders the result as a table. Ctrl+C cancels the running
// query on the service instead of killing the process outright.
var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Execute a SQL statement on the Frostline compute service",
	Long: `The query command executes a single SQL statement against the Frostline
compute service and renders the result. PUT and GET file transfer commands
and the set-client-property pseudo-command are handled on the client.

While a query is running, Ctrl+C requests cancellation on the service and
waits for the engine to confirm; the statement is not silently abandoned.

Examples:
  frostline query "select * from orders limit 10"
  frostline query --timeout 60 "call heavy_report()"
  frostline query "put file:///tmp/data.csv @mystage"`,
	Args: cobra.MinimumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		sql := strings.Join(args, " ")

		sess, err := resumeSession()
		if err != nil {
			logging.PresentExecError(err)
			return err
		}

		st := statement.New(sess)
		defer st.Close()

		for _, bind := range queryBinds {
			name, value, ok := strings.Cut(bind, "=")
			if !ok {
				return fmt.Errorf("invalid --bind %q, want name=value", bind)
			}
			st.BindValue(name, value, "TEXT")
		}
		for _, opt := range queryOptions {
			name, value, ok := strings.Cut(opt, "=")
			if !ok {
				return fmt.Errorf("invalid --option %q, want name=value", opt)
			}
			if err := st.SetOption(name, value); err != nil {
				logging.PresentExecError(err)
				return err
			}
		}
		if queryTimeoutSecs > 0 {
			if err := st.SetOption("query_timeout", queryTimeoutSecs); err != nil {
				return err
			}
		}

		// Ctrl+C cancels the in-flight query; a second Ctrl+C kills the
		// process the usual way once the handler is removed.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		sigDone := make(chan struct{})
		var sigWG sync.WaitGroup
		sigWG.Add(1)
		go func() {
			defer sigWG.Done()
			select {
			case <-sigCh:
				signal.Stop(sigCh)
				_ = st.Cancel(cmd.Context())
			case <-sigDone:
			}
		}()

		stopArea := startQueryArea(st)

		var res *result.Result
		if queryDescribe {
			res, err = st.Describe(cmd.Context(), sql)
		} else {
			res, err = st.Execute(cmd.Context(), sql)
		}

		stopArea()
		close(sigDone)
		signal.Stop(sigCh)
		sigWG.Wait()

		// A renewal may have rotated the session token mid-query.
		persistTokens(sess)

		if err != nil {
			logging.PresentExecError(err)
			return err
		}
		if res == nil {
			pterm.Success.Println("OK")
			return nil
		}

		renderResult(res)
		return nil
	},
}

// startQueryArea starts the running-query indicator: a single-line area with
// a braille spinner, showing transfer progress when the statement is in the
// file transfer path. The returned function stops and removes it.
func startQueryArea(st *statement.Statement) func() {
	cursor.Hide()
	area, err := pterm.DefaultArea.WithRemoveWhenDone(true).Start()
	if err != nil {
		cursor.Show()
		return func() {}
	}

	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		t := time.NewTicker(120 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				i++
				line := frames[i%len(frames)] + " running query"
				if done, total := st.TransferStatus(); total > 0 {
					line = fmt.Sprintf("%s transferring (%d/%d bytes)", frames[i%len(frames)], done, total)
				}
				area.Update(line)
			case <-stop:
				return
			}
		}
	}()

	return func() {
		close(stop)
		wg.Wait()
		area.Stop()
		cursor.Show()
	}
}

// renderResult prints the result as a table with a trailing row count.
func renderResult(res *result.Result) {
	if len(res.Columns) == 0 {
		pterm.Success.Println("OK")
		return
	}

	header := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		header[i] = c.Name
	}

	rows := res.Rows
	truncated := false
	if maxRowsShown > 0 && len(rows) > maxRowsShown {
		rows = rows[:maxRowsShown]
		truncated = true
	}

	data := make(pterm.TableData, 0, len(rows)+1)
	data = append(data, header)
	for _, row := range rows {
		line := make([]string, len(row))
		for i, cell := range row {
			line[i] = cellString(cell)
		}
		data = append(data, line)
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		// Degrade to plain output when the terminal rejects the table.
		for _, row := range data {
			fmt.Println(strings.Join(row, "\t"))
		}
	}

	pterm.Println()
	summary := fmt.Sprintf("%d row(s)", len(res.Rows))
	if truncated {
		summary += fmt.Sprintf(", showing first %d", maxRowsShown)
	}
	if res.QueryID != "" {
		summary += "  query id: " + res.QueryID
	}
	pterm.Println(pterm.NewStyle(pterm.FgGray).Sprint(summary))
}

// cellString renders one result cell; NULL is shown distinctly from the
// empty string.
func cellString(cell any) string {
	if cell == nil {
		return pterm.NewStyle(pterm.FgGray).Sprint("NULL")
	}
	if s, ok := cell.(string); ok {
		return s
	}
	return fmt.Sprint(cell)
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVarP(&queryTimeoutSecs, "timeout", "t", 0, "Cancel the query after this many seconds")
	queryCmd.Flags().BoolVar(&queryDescribe, "describe", false, "Return result metadata without executing")
	queryCmd.Flags().StringArrayVar(&queryBinds, "bind", nil, "Bind a parameter as name=value (repeatable)")
	queryCmd.Flags().StringArrayVar(&queryOptions, "option", nil, "Set a statement option as name=value (repeatable)")
	queryCmd.Flags().IntVar(&maxRowsShown, "max-rows", 1000, "Maximum number of rows to display (0 = all)")
}
