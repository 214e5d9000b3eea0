package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/ssh352/nexus/internal/domain/value"
	"github.com/ssh352/nexus/internal/engine"
	"github.com/ssh352/nexus/internal/view"
)

// Result is what one console command produces
type Result struct {
	Columns []string
	Kinds   []value.Kind
	Rows    []engine.Row
	Message string
	Error   string
}

// console holds the state of one interactive session
type console struct {
	guard *engine.Guard
	kinds []value.Kind
	out   *syncWriter
	watch engine.SubscriptionID
}

// syncWriter serializes console output with change events printed from
// the feed goroutine while watch is on
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func Start(in io.Reader, out io.Writer, guard *engine.Guard, kinds []value.Kind) {
	c := &console{guard: guard, kinds: kinds, out: &syncWriter{w: out}}
	defer c.stopWatch()

	scanner := bufio.NewScanner(in)
	fmt.Fprintln(c.out, "Welcome to Nexus")
	fmt.Fprintln(c.out, "Type 'help' for commands, 'exit' or '\\q' to quit.")

	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		if line == "exit" || line == "\\q" {
			break
		}

		PrintResult(c.out, c.execute(line))
	}
}

func (c *console) execute(line string) *Result {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help":
		return &Result{Message: helpText}
	case "show":
		return c.show()
	case "count":
		return c.count()
	case "find":
		return c.find(args)
	case "sort":
		return c.sort(args)
	case "filter":
		return c.filter(args)
	case "watch":
		return c.setWatch(args)
	}
	return &Result{Error: fmt.Sprintf("unknown command %q", cmd)}
}

const helpText = `Commands:
  show                      print every row
  count                     print the row count
  find <key values...>      look a row up by its index columns
  sort <column> [desc]      print rows ordered by a column
  filter <column> <v>[,<v>] print rows whose column is one of the values;
                            repeat <column> <v> pairs to require several
  watch on|off              print changes as they are applied
  exit, \q                  quit`

func (c *console) table(m engine.TableModel) *Result {
	return &Result{
		Columns: engine.ColumnNames(m),
		Kinds:   c.kinds,
		Rows:    engine.SelectAll(m),
	}
}

func (c *console) show() *Result {
	var res *Result
	c.guard.Read(func(m *engine.IndexedModel) error {
		res = c.table(m)
		res.Message = fmt.Sprintf("%d row(s)", len(res.Rows))
		return nil
	})
	return res
}

func (c *console) count() *Result {
	var n int
	c.guard.Read(func(m *engine.IndexedModel) error {
		n = m.GetRowCount()
		return nil
	})
	return &Result{Message: fmt.Sprintf("%d", n)}
}

func (c *console) find(args []string) *Result {
	var res *Result
	c.guard.Read(func(m *engine.IndexedModel) error {
		indices := m.Indices()
		if len(args) != len(indices) {
			res = &Result{Error: fmt.Sprintf("find needs %d key value(s), got %d", len(indices), len(args))}
			return nil
		}
		key := make([]value.Value, len(args))
		for i, arg := range args {
			v, err := value.Coerce(c.kinds[indices[i]], arg)
			if err != nil {
				res = &Result{Error: err.Error()}
				return nil
			}
			key[i] = v
		}
		row, ok := engine.SelectByKey(m, key)
		if !ok {
			res = &Result{Message: "not found"}
			return nil
		}
		res = &Result{Columns: m.Columns(), Kinds: c.kinds, Rows: []engine.Row{row}}
		return nil
	})
	return res
}

// columnIndex resolves a column by name, case-insensitively
func columnIndex(m engine.TableModel, name string) (int, bool) {
	for i, col := range engine.ColumnNames(m) {
		if strings.EqualFold(col, name) {
			return i, true
		}
	}
	return -1, false
}

// sort and filter build a view, render it and detach it again. Views
// register a listener on the model, so this happens under the write lock.
func (c *console) sort(args []string) *Result {
	if len(args) < 1 || len(args) > 2 {
		return &Result{Error: "usage: sort <column> [desc]"}
	}
	desc := false
	if len(args) == 2 {
		if !strings.EqualFold(args[1], "desc") && !strings.EqualFold(args[1], "asc") {
			return &Result{Error: fmt.Sprintf("unknown sort direction %q", args[1])}
		}
		desc = strings.EqualFold(args[1], "desc")
	}

	var res *Result
	c.guard.Write(func(m *engine.IndexedModel) error {
		col, ok := columnIndex(m, args[0])
		if !ok {
			res = &Result{Error: fmt.Sprintf("unknown column %q", args[0])}
			return nil
		}
		sorted, err := view.NewSortedModel(m, view.SortKey{Column: col, Descending: desc})
		if err != nil {
			res = &Result{Error: err.Error()}
			return nil
		}
		defer sorted.Close()
		res = c.table(sorted)
		return nil
	})
	return res
}

const filterUsage = "usage: filter <column> <value>[,<value>...] [<column> <value>...]"

// filter keeps rows matching every column condition; a condition with
// several comma-separated values matches any of them
func (c *console) filter(args []string) *Result {
	if len(args) < 2 || len(args)%2 != 0 {
		return &Result{Error: filterUsage}
	}

	var res *Result
	c.guard.Write(func(m *engine.IndexedModel) error {
		preds := make([]view.Predicate, 0, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			col, ok := columnIndex(m, args[i])
			if !ok {
				res = &Result{Error: fmt.Sprintf("unknown column %q", args[i])}
				return nil
			}
			var vs []value.Value
			for _, tok := range strings.Split(args[i+1], ",") {
				v, err := value.Coerce(c.kinds[col], tok)
				if err != nil {
					res = &Result{Error: err.Error()}
					return nil
				}
				vs = append(vs, v)
			}
			if len(vs) == 1 {
				preds = append(preds, view.ColumnEquals(col, vs[0]))
			} else {
				preds = append(preds, view.ColumnIn(col, vs...))
			}
		}
		filtered := view.NewFilteredModel(m, view.And(preds...))
		defer filtered.Close()
		res = c.table(filtered)
		res.Message = fmt.Sprintf("%d row(s)", len(res.Rows))
		return nil
	})
	return res
}

func (c *console) setWatch(args []string) *Result {
	if len(args) != 1 {
		return &Result{Error: "usage: watch on|off"}
	}
	switch strings.ToLower(args[0]) {
	case "on":
		c.guard.Write(func(m *engine.IndexedModel) error {
			if c.watch == "" {
				c.watch = m.AddChangeListener(c.printChange)
			}
			return nil
		})
		return &Result{Message: "watching changes"}
	case "off":
		c.stopWatch()
		return &Result{Message: "stopped watching"}
	}
	return &Result{Error: "usage: watch on|off"}
}

func (c *console) stopWatch() {
	c.guard.Write(func(m *engine.IndexedModel) error {
		if c.watch != "" {
			m.RemoveChangeListener(c.watch)
			c.watch = ""
		}
		return nil
	})
}

func (c *console) printChange(ch engine.Change) {
	switch ch.Kind {
	case engine.ChangeUpdated:
		fmt.Fprintf(c.out, "* %s @%d %s -> %s\n", ch.Kind, ch.Position, ch.Previous, ch.Values)
	default:
		fmt.Fprintf(c.out, "* %s @%d %s\n", ch.Kind, ch.Position, ch.Values)
	}
}

func PrintResult(w io.Writer, res *Result) {
	if res.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", res.Error)
		return
	}

	if len(res.Rows) > 0 || len(res.Columns) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

		// Header, with the column type when known
		for i, col := range res.Columns {
			if i < len(res.Kinds) {
				fmt.Fprintf(tw, "%s (%s)", col, res.Kinds[i])
			} else {
				fmt.Fprintf(tw, "%s", col)
			}
			if i < len(res.Columns)-1 {
				fmt.Fprintf(tw, "\t")
			}
		}
		fmt.Fprintln(tw)

		// Separator
		for i := range res.Columns {
			fmt.Fprintf(tw, "---")
			if i < len(res.Columns)-1 {
				fmt.Fprintf(tw, "\t")
			}
		}
		fmt.Fprintln(tw)

		for _, row := range res.Rows {
			for i, v := range row {
				fmt.Fprintf(tw, "%s", v)
				if i < len(row)-1 {
					fmt.Fprintf(tw, "\t")
				}
			}
			fmt.Fprintln(tw)
		}
		tw.Flush()
	}

	if res.Message != "" {
		fmt.Fprintln(w, res.Message)
	}
}
