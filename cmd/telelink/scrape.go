package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"telelink/pkg/logger"
	"telelink/pkg/models"
	"telelink/pkg/scraper"
	"telelink/pkg/store"
	"telelink/pkg/telegram"
)

var (
	// Scrape command flags
	scrapeFrom      string
	scrapeTo        string
	scrapeKeyword   string
	scrapeLimit     int
	scrapeLinksOnly bool
	scrapeAll       bool
	scrapePageSize  int
	scrapeRate      int
	scrapeRetries   int
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <channel>...",
	Short: "Scrape one or more channels and store their messages and links",
	Long: `Scrape channel histories and store messages plus extracted links.

Channels are accepted as @usernames, t.me links, web.telegram.org URLs, or
bare usernames. Each channel resumes from its stored cursor unless --all is
given; a channel that fails (private, nonexistent, network trouble) is
reported and the rest of the batch continues.`,
	Example: `  # Scrape new messages from two channels
  telelink scrape @golang_news durov

  # Re-scrape from the very beginning
  telelink scrape @golang_news --all

  # Only messages from August 2026 that mention releases
  telelink scrape @golang_news --from 2026-08-01 --to 2026-08-31 --keyword release

  # Grab at most 500 messages, keep only those carrying links
  telelink scrape @golang_news --limit 500 --links-only`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&scrapeFrom, "from", "", "only messages on or after this date (YYYY-MM-DD)")
	scrapeCmd.Flags().StringVar(&scrapeTo, "to", "", "only messages on or before this date (YYYY-MM-DD)")
	scrapeCmd.Flags().StringVar(&scrapeKeyword, "keyword", "", "only messages containing this keyword")
	scrapeCmd.Flags().IntVar(&scrapeLimit, "limit", 0, "stop after this many messages per channel (0 = no limit)")
	scrapeCmd.Flags().BoolVar(&scrapeLinksOnly, "links-only", false, "store only messages that carry at least one link")
	scrapeCmd.Flags().BoolVar(&scrapeAll, "all", false, "ignore the stored cursor and scrape from the beginning")
	scrapeCmd.Flags().IntVar(&scrapePageSize, "page-size", 0, "messages per history request")
	scrapeCmd.Flags().IntVar(&scrapeRate, "rate-limit", 0, "history requests per minute")
	scrapeCmd.Flags().IntVar(&scrapeRetries, "max-retries", 0, "retry attempts for transient fetch failures")
}

func runScrape(cmd *cobra.Command, args []string) error {
	extra := map[string]interface{}{}
	if scrapePageSize > 0 {
		extra["page-size"] = scrapePageSize
	}
	if scrapeRate > 0 {
		extra["rate-limit"] = scrapeRate
	}
	if scrapeRetries > 0 {
		extra["max-retries"] = scrapeRetries
	}

	cfg, err := loadConfig(extra)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	from, err := parseDateFlag(scrapeFrom)
	if err != nil {
		return err
	}
	to, err := parseDateFlag(scrapeTo)
	if err != nil {
		return err
	}

	filter := models.Filter{
		FromDate:    from,
		ToDate:      to,
		Keyword:     scrapeKeyword,
		Limit:       scrapeLimit,
		LinksOnly:   scrapeLinksOnly,
		SkipScraped: !scrapeAll,
	}

	st, err := store.Open(cfg.Database.Path, log)
	if err != nil {
		return err
	}
	defer st.Close()

	client := telegram.NewWebClient(30*time.Second, log)
	s := scraper.New(client, st, cfg)

	req := scraper.Request{}
	for _, arg := range args {
		req.Channels = append(req.Channels, scraper.ChannelRequest{Identifier: arg, Filter: filter})
	}

	// First interrupt requests a graceful stop at the next page boundary;
	// a second one kills the process the usual way.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan scraper.Event, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		renderEvents(events)
	}()

	summary, runErr := s.Run(ctx, req, events)
	close(events)
	<-done

	fmt.Println()
	for _, o := range summary.Outcomes {
		fmt.Println("  " + o.Describe())
	}
	fmt.Printf("total: %d messages, %d links\n", summary.Messages, summary.Links)

	if runErr != nil {
		return runErr
	}
	if summary.Failed() {
		return fmt.Errorf("%d channel(s) failed", countFailed(summary))
	}
	return nil
}

func countFailed(s *scraper.Summary) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.State == scraper.StateFailed {
			n++
		}
	}
	return n
}

// renderEvents prints scrape progress to stderr. Rate-limit countdowns
// rewrite a single line; everything else appends.
func renderEvents(events <-chan scraper.Event) {
	inCountdown := false
	for ev := range events {
		switch ev.Type {
		case scraper.EventRateLimit:
			if ev.Remaining > 0 {
				fmt.Fprintf(os.Stderr, "\r%s: rate limited, resuming in %s ", ev.Channel, ev.Remaining)
				inCountdown = true
			} else if inCountdown {
				fmt.Fprintf(os.Stderr, "\r%s: resuming                      \n", ev.Channel)
				inCountdown = false
			}
		case scraper.EventProgress:
			if inCountdown {
				fmt.Fprintln(os.Stderr)
				inCountdown = false
			}
			fmt.Fprintf(os.Stderr, "%s: %d messages, %d links\n", ev.Channel, ev.Messages, ev.Links)
		case scraper.EventChannelDone:
			if inCountdown {
				fmt.Fprintln(os.Stderr)
				inCountdown = false
			}
			if ev.Err != nil {
				fmt.Fprintf(os.Stderr, "%s: %s: %v\n", ev.Channel, ev.State, ev.Err)
			} else {
				fmt.Fprintf(os.Stderr, "%s: %s\n", ev.Channel, ev.State)
			}
		}
	}
}
