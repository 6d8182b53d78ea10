package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/swiftsearch/internal/config"
	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
	"github.com/Aman-CERP/swiftsearch/internal/lifecycle"
	"github.com/Aman-CERP/swiftsearch/internal/mcp"
	"github.com/Aman-CERP/swiftsearch/internal/query"
	"github.com/Aman-CERP/swiftsearch/internal/ui"
)

type searchOptions struct {
	senders    []string
	threads    []string
	fileType   string
	sortByDate bool
	limit      int
	offset     int
	from       string
	to         string
	raw        bool
	jsonOutput bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search the open index",
		Long: `Search the index the daemon has open.

Free text matches words and word prefixes in message text, #tags,
attachment names and attachment types. Results are ranked by relevance
unless --sort-date is given. With --raw the text is sent to the engine as
a finished query.`,
		Example: `  # Relevance search
  swiftsearch search quarterly budget

  # Newest messages from one sender with a pdf attached
  swiftsearch search report --sender u-7 --file-type pdf --sort-date

  # A date window
  swiftsearch search invoice --from 2024-01-01 --to 2024-03-31`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := buildSearchPayload(strings.Join(args, " "), opts)
			if err != nil {
				return err
			}
			client, _, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			res, err := client.Search(cmd.Context(), payload)
			if err != nil {
				return rpcFailure(err)
			}

			page := toResultPage(mcp.ToSearchOutput(res))
			r := ui.NewResultsRenderer(cmd.OutOrStdout(), ui.PlainOutput(cmd.OutOrStdout(), noColor))
			if opts.jsonOutput {
				return r.RenderJSON(page)
			}
			return r.Render(page)
		},
	}

	cmd.Flags().StringSliceVar(&opts.senders, "sender", nil, "Only messages from these sender ids")
	cmd.Flags().StringSliceVar(&opts.threads, "thread", nil, "Only messages in these thread ids")
	cmd.Flags().StringVar(&opts.fileType, "file-type", "", "Only messages with an attachment of this type")
	cmd.Flags().BoolVar(&opts.sortByDate, "sort-date", false, "Newest first instead of by relevance")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", config.DefaultLimit, "Maximum results")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Results to skip")
	cmd.Flags().StringVar(&opts.from, "from", "", "Earliest ingestion date (YYYY-MM-DD, RFC3339 or epoch ms)")
	cmd.Flags().StringVar(&opts.to, "to", "", "Latest ingestion date (YYYY-MM-DD, RFC3339 or epoch ms)")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Send the text as a finished engine query")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func buildSearchPayload(text string, opts searchOptions) (lifecycle.SearchPayload, error) {
	text = strings.TrimSpace(text)
	q := text
	if !opts.raw {
		q = query.ConstructQuery(text, opts.senders, opts.threads, opts.fileType, opts.sortByDate)
	}
	if q == "" {
		return lifecycle.SearchPayload{}, amerrors.New(amerrors.ErrCodeQueryEmpty, "query has no searchable terms", nil)
	}

	p := lifecycle.SearchPayload{Q: q}
	limit := float64(opts.limit)
	p.Limit = &limit
	if opts.offset > 0 {
		offset := float64(opts.offset)
		p.Offset = &offset
	}
	if opts.sortByDate {
		order := float64(config.SortByDate)
		p.SortOrder = &order
	}

	from, err := parseDateFlag("from", opts.from, false)
	if err != nil {
		return lifecycle.SearchPayload{}, err
	}
	to, err := parseDateFlag("to", opts.to, true)
	if err != nil {
		return lifecycle.SearchPayload{}, err
	}
	p.StartDate = from
	p.EndDate = to
	return p, nil
}

// parseDateFlag converts a date flag to epoch milliseconds. A bare day as
// an upper bound covers the whole day.
func parseDateFlag(name, v string, endOfDay bool) (lifecycle.DateParam, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return lifecycle.DateParam(strconv.FormatInt(ms, 10)), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return lifecycle.DateParam(strconv.FormatInt(t.UnixMilli(), 10)), nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return "", amerrors.New(amerrors.ErrCodeInvalidInput,
			fmt.Sprintf("--%s: cannot parse %q as a date", name, v), err)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return lifecycle.DateParam(strconv.FormatInt(t.UnixMilli(), 10)), nil
}

func toResultPage(out mcp.SearchMessagesOutput) ui.ResultPage {
	page := ui.ResultPage{
		Rows:     make([]ui.ResultRow, 0, len(out.Messages)),
		Returned: out.Returned,
		Total:    out.Total,
		More:     out.More,
	}
	for _, m := range out.Messages {
		row := ui.ResultRow{
			MessageID: m.MessageID,
			SenderID:  m.SenderID,
			ThreadID:  m.ThreadID,
			Text:      m.Text,
			Tags:      m.Tags,
			Files:     m.Attachments,
		}
		if m.IngestionDate > 0 {
			row.Date = time.UnixMilli(m.IngestionDate)
		}
		page.Rows = append(page.Rows, row)
	}
	return page
}
